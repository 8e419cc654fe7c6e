package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/hr"
)

func createCalendarEvent(d *Deps) Tool {
	return newTool(consts.ToolCreateCalendarEvent,
		"Create a calendar event.\nUse for generic meetings or appointments when the user does not explicitly say 'interview'. Times are ISO format, e.g. 2025-01-31T10:00:00.",
		map[string]*schema.ParameterInfo{
			"title":       param(schema.String, "Event title", true),
			"start_time":  param(schema.String, "Start time, ISO format", true),
			"end_time":    param(schema.String, "End time, ISO format", true),
			"description": param(schema.String, "Event description", false),
			"attendees":   param(schema.String, "Comma-separated email addresses", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			title := str(args, "title")
			if title == "" {
				return fail("Please give the event a title."), nil
			}
			start, err := parseTime(str(args, "start_time"), d.Location)
			if err != nil {
				return fail("Failed to create event: %v", err), nil
			}
			end := start.Add(time.Hour)
			if v := str(args, "end_time"); v != "" {
				if end, err = parseTime(v, d.Location); err != nil {
					return fail("Failed to create event: %v", err), nil
				}
			}
			if !end.After(start) {
				return fail("Failed to create event: end time must be after the start time."), nil
			}

			attendees := list(args, "attendees")
			if actor.Email != "" && !containsFold(attendees, actor.Email) {
				attendees = append(attendees, actor.Email)
			}

			e := &hr.Event{
				OrgID:       actor.OrgID,
				Title:       title,
				Start:       start,
				End:         end,
				Description: str(args, "description"),
				Attendees:   attendees,
				CreatedBy:   actor.UserID,
			}
			if err := d.HR.AddEvent(ctx, e); err != nil {
				return nil, err
			}

			link := d.link("/calendar/events/%s", e.ID)
			return &Result{
				OK:      true,
				Message: fmt.Sprintf("I have successfully scheduled the event '%s' on your calendar. Link: %s", title, link),
				Link:    link,
				Data: map[string]any{
					"title":     title,
					"start":     start.Format(time.RFC3339),
					"end":       end.Format(time.RFC3339),
					"attendees": strings.Join(attendees, ","),
				},
			}, nil
		})
}

func scheduleInterview(d *Deps) Tool {
	return newTool(consts.ToolScheduleInterview,
		"Schedule an interview with a candidate for the current user.\nOnly use when the user explicitly mentions 'interview'; for other meetings use create_calendar_event.",
		map[string]*schema.ParameterInfo{
			"candidate":        param(schema.String, "Name or email of the candidate", true),
			"start_time":       param(schema.String, "Start time, ISO format", true),
			"job_title":        param(schema.String, "Role the interview is for", false),
			"duration_minutes": param(schema.Integer, "Duration in minutes, default 30", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			if actor.UserID == "" {
				return fail("No logged-in user found to set as interviewer."), nil
			}
			query := str(args, "candidate")
			found, err := d.HR.ResolveCandidates(ctx, actor.OrgID, query)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return fail("I couldn't find a candidate matching '%s'. Please ensure they are added first.", query), nil
			}
			if len(found) > 1 {
				emails := make([]string, 0, len(found))
				for _, c := range found {
					emails = append(emails, c.Email)
				}
				return fail("Multiple candidates found matching '%s': %s. Please use their exact email.", query, strings.Join(emails, ", ")), nil
			}
			c := found[0]

			start, err := parseTime(str(args, "start_time"), d.Location)
			if err != nil {
				return fail("Invalid date format. Please use ISO 8601."), nil
			}
			jobTitle := str(args, "job_title")
			if jobTitle == "" {
				jobTitle = "Candidate"
			}
			duration := time.Duration(integer(args, "duration_minutes", 30)) * time.Minute
			if duration <= 0 {
				duration = 30 * time.Minute
			}

			attendees := []string{c.Email}
			if actor.Email != "" {
				attendees = append(attendees, actor.Email)
			}
			e := &hr.Event{
				OrgID:       actor.OrgID,
				Title:       fmt.Sprintf("%s Interview", jobTitle),
				Start:       start,
				End:         start.Add(duration),
				Description: fmt.Sprintf("Interview for %s role with %s.", jobTitle, c.Name),
				Attendees:   attendees,
				CreatedBy:   actor.UserID,
			}
			if err := d.HR.AddEvent(ctx, e); err != nil {
				return nil, err
			}

			i := &hr.Interview{
				OrgID:         actor.OrgID,
				CandidateID:   c.ID,
				InterviewerID: actor.UserID,
				JobTitle:      jobTitle,
				Start:         start,
				Duration:      duration,
				EventID:       e.ID,
			}
			if err := d.HR.AddInterview(ctx, i); err != nil {
				return nil, err
			}

			link := d.link("/calendar/events/%s", e.ID)
			return &Result{
				OK:      true,
				Message: fmt.Sprintf("I have confirmed that the %s interview with %s is scheduled. Calendar Link: %s", jobTitle, c.Name, link),
				Link:    link,
				Data:    map[string]any{"interview_id": i.ID, "when": start.Format(time.RFC3339)},
			}, nil
		})
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
