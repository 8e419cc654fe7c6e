package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
)

const (
	msgPolicyNoMatch  = "The policy does not specify information regarding this query."
	msgPolicyNoNumber = "The policy mentions the relevant section but does not specify the exact number, duration, or frequency for this request."
)

// 询问具体数量的问题
var quantitativeKeywords = []string{"how many", "how much", "how often", "days", "hours", "count", "period"}

var digits = regexp.MustCompile(`\d+`)

func searchPolicies(d *Deps) Tool {
	return newTool(consts.ToolSearchPolicies,
		"Search HR policies and procedures.\nUse when the user asks about company rules, leave, benefits, code of conduct and similar topics. Returns policy excerpts.",
		map[string]*schema.ParameterInfo{
			"query": param(schema.String, "The policy question", true),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			query := str(args, "query")
			if query == "" {
				return fail("Please tell me what policy you are looking for."), nil
			}
			hits, err := d.HR.SearchPolicies(ctx, actor.OrgID, query, 3)
			if err != nil {
				return nil, err
			}
			slog.Info("searchPolicies, query = %q, hits = %d", query, len(hits))
			if len(hits) == 0 {
				return &Result{OK: true, Message: msgPolicyNoMatch}, nil
			}

			excerpts := make([]string, 0, len(hits))
			for _, h := range hits {
				excerpts = append(excerpts, h.Content)
			}
			if isQuantitative(query) && !hasMeaningfulNumbers(strings.Join(excerpts, " ")) {
				return &Result{OK: true, Message: msgPolicyNoNumber}, nil
			}

			parts := make([]string, 0, len(hits))
			sources := make([]string, 0, len(hits))
			for _, h := range hits {
				source := h.Title
				if h.Heading != "" && h.Heading != h.Title {
					source = fmt.Sprintf("%s / %s", h.Title, h.Heading)
				}
				sources = append(sources, source)
				parts = append(parts, fmt.Sprintf("Source: %s\nExcerpt: %s", source, strings.Join(strings.Fields(h.Content), " ")))
			}
			return &Result{
				OK:      true,
				Message: strings.Join(parts, "\n\n"),
				Data:    map[string]any{"sources": sources},
			}, nil
		})
}

func isQuantitative(query string) bool {
	q := strings.ToLower(query)
	for _, k := range quantitativeKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// hasMeaningfulNumbers 章节编号之外的数字：大于 7 的值，或数字很密集
func hasMeaningfulNumbers(text string) bool {
	nums := digits.FindAllString(text, -1)
	for _, n := range nums {
		if v, err := strconv.Atoi(n); err == nil && v >= 8 {
			return true
		}
	}
	return len(nums) > 10
}
