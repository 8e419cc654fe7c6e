package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/hr"
)

func searchCandidates(d *Deps) Tool {
	return newTool(consts.ToolSearchCandidates,
		"List candidates with optional filters.\nUse to search for candidates or see who has applied.",
		map[string]*schema.ParameterInfo{
			"name":   param(schema.String, "Part of the candidate name", false),
			"email":  param(schema.String, "Part of the candidate email", false),
			"status": param(schema.String, "Candidate status, e.g. pending", false),
			"limit":  param(schema.Integer, "Maximum results, default 10", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			f := hr.CandidateFilter{Name: str(args, "name"), Email: str(args, "email"), Status: str(args, "status")}
			all, err := d.HR.SearchCandidates(ctx, actor.OrgID, f)
			if err != nil {
				return nil, err
			}
			if len(all) == 0 {
				return &Result{OK: true, Message: "No candidates found matching your criteria."}, nil
			}

			shown := all
			if limit := integer(args, "limit", 10); limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			lines := []string{fmt.Sprintf("I found %d candidate(s) (showing top %d):", len(all), len(shown))}
			results := make([]map[string]any, 0, len(shown))
			for _, c := range shown {
				lines = append(lines, fmt.Sprintf("• %s (%s) - %s", c.Name, c.Email, c.Status))
				results = append(results, map[string]any{"id": c.ID, "name": c.Name, "email": c.Email, "status": c.Status})
			}
			return &Result{OK: true, Message: strings.Join(lines, "\n"), Data: map[string]any{"results": results}}, nil
		})
}

func addCandidate(d *Deps) Tool {
	return newTool(consts.ToolAddCandidate,
		"Add a new candidate to the organization's HR system.",
		map[string]*schema.ParameterInfo{
			"name":   param(schema.String, "Candidate full name", true),
			"email":  param(schema.String, "Candidate email", true),
			"skills": param(schema.String, "Comma-separated skills", false),
			"phone":  param(schema.String, "Phone number", false),
			"source": param(schema.String, "Where the candidate came from, default Chatbot", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			name, email := str(args, "name"), str(args, "email")
			if name == "" || email == "" {
				return fail("I need both the candidate's name and email to add them."), nil
			}
			source := str(args, "source")
			if source == "" {
				source = "Chatbot"
			}
			c := &hr.Candidate{
				OrgID:  actor.OrgID,
				Name:   name,
				Email:  email,
				Phone:  str(args, "phone"),
				Skills: list(args, "skills"),
				Source: source,
			}
			if err := d.HR.AddCandidate(ctx, c); err != nil {
				if errors.Is(err, hr.ErrDuplicate) {
					return fail("A candidate with the email '%s' is already in the system.", email), nil
				}
				return nil, err
			}
			return &Result{
				OK:      true,
				Message: fmt.Sprintf("I've successfully added %s as a new candidate.", name),
				Data:    map[string]any{"id": c.ID, "name": name},
			}, nil
		})
}

func createJob(d *Deps) Tool {
	return newTool(consts.ToolCreateJob,
		"Create a job posting or role for hiring.",
		map[string]*schema.ParameterInfo{
			"title":        param(schema.String, "Job title", true),
			"description":  param(schema.String, "Role description", true),
			"requirements": param(schema.String, "Requirements for the role", false),
			"department":   param(schema.String, "Department", true),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			j := &hr.Job{
				OrgID:        actor.OrgID,
				Title:        str(args, "title"),
				Description:  str(args, "description"),
				Requirements: str(args, "requirements"),
				Department:   str(args, "department"),
			}
			if j.Title == "" {
				return fail("Please tell me the job title."), nil
			}
			if err := d.HR.AddJob(ctx, j); err != nil {
				return nil, err
			}
			return &Result{
				OK:      true,
				Message: fmt.Sprintf("I've created the new job role for '%s' in the %s department.", j.Title, j.Department),
				Data:    map[string]any{"id": j.ID, "title": j.Title},
			}, nil
		})
}

func shortlistCandidates(d *Deps) Tool {
	return newTool(consts.ToolShortlist,
		"Shortlist candidates whose skills match any of the given skills.",
		map[string]*schema.ParameterInfo{
			"skills": param(schema.String, "Comma-separated skills", true),
			"limit":  param(schema.Integer, "Maximum results, default 5", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			skills := list(args, "skills")
			if len(skills) == 0 {
				return fail("Please provide skills to shortlist."), nil
			}
			matched, err := d.HR.ShortlistBySkills(ctx, actor.OrgID, skills, integer(args, "limit", 5))
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(matched))
			results := make([]map[string]any, 0, len(matched))
			for _, c := range matched {
				names = append(names, c.Name)
				results = append(results, map[string]any{"id": c.ID, "name": c.Name})
			}
			joined := strings.Join(names, ", ")
			if joined == "" {
				joined = "None found"
			}
			return &Result{
				OK:      true,
				Message: fmt.Sprintf("I found the following candidates matching the skills: %s.", joined),
				Data:    map[string]any{"results": results},
			}, nil
		})
}

func listInterviews(d *Deps) Tool {
	return newTool(consts.ToolListInterviews,
		"List interviews, upcoming ones by default.",
		map[string]*schema.ParameterInfo{
			"upcoming": param(schema.Boolean, "Only interviews that have not started, default true", false),
			"limit":    param(schema.Integer, "Maximum results, default 5", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			items, err := d.HR.ListInterviews(ctx, actor.OrgID, boolean(args, "upcoming", true), integer(args, "limit", 5))
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return &Result{OK: true, Message: "No upcoming interviews found."}, nil
			}
			lines := []string{"**Upcoming Interviews:**"}
			results := make([]map[string]any, 0, len(items))
			for _, i := range items {
				when := i.Start.In(d.Location).Format("02 Jan 2006, 03:04 PM")
				lines = append(lines, fmt.Sprintf("• %s: **%s** (Status: %s)", when, i.CandidateName, i.Status))
				results = append(results, map[string]any{"id": i.ID, "candidate": i.CandidateName, "time": i.Start.String()})
			}
			return &Result{OK: true, Message: strings.Join(lines, "\n"), Data: map[string]any{"results": results}}, nil
		})
}

func listLeaveRequests(d *Deps) Tool {
	return newTool(consts.ToolListLeaveRequests,
		"List leave requests, pending by default.\nStatus options: pending, approved, rejected, all.",
		map[string]*schema.ParameterInfo{
			"status": param(schema.String, "pending, approved, rejected or all", false),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			status := strings.ToLower(str(args, "status"))
			if status == "" {
				status = "pending"
			}
			leaves, err := d.HR.ListLeaves(ctx, actor.OrgID, status)
			if err != nil {
				return nil, err
			}
			if len(leaves) == 0 {
				return &Result{OK: true, Message: fmt.Sprintf("No %s leave requests found.", status)}, nil
			}
			lines := []string{fmt.Sprintf("Found %d %s leave request(s):", len(leaves), status)}
			results := make([]map[string]any, 0, len(leaves))
			for _, l := range leaves {
				lines = append(lines, fmt.Sprintf("• **%s**: %s for %d day(s) (%s to %s)",
					l.EmployeeName, l.LeaveType, l.Days(), l.Start.Format("2006-01-02"), l.End.Format("2006-01-02")))
				results = append(results, map[string]any{"id": l.ID, "employee": l.EmployeeName, "status": l.Status})
			}
			return &Result{OK: true, Message: strings.Join(lines, "\n"), Data: map[string]any{"results": results}}, nil
		})
}
