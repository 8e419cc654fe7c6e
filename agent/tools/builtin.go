package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/hr"
	"github.com/hildam/harvey-go/repo/mailer"
)

const msgNoOrg = "User is not associated with any organization. Please contact support."

// Deps 内置工具依赖
type Deps struct {
	HR       *hr.Store
	Mailer   mailer.Sender
	Mail     conf.MailConfig
	LinkBase string
	Location *time.Location
}

// Builtins 返回全部内置 HR 工具
func Builtins(d *Deps) []Tool {
	if d.Location == nil {
		d.Location = time.UTC
	}
	return []Tool{
		sendEmail(d),
		createCalendarEvent(d),
		scheduleInterview(d),
		searchPolicies(d),
		searchCandidates(d),
		addCandidate(d),
		createJob(d),
		shortlistCandidates(d),
		listInterviews(d),
		listLeaveRequests(d),
	}
}

type runFunc func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error)

// funcTool 以函数实现的工具，调用前校验操作者所属组织
type funcTool struct {
	info *schema.ToolInfo
	run  runFunc
}

func newTool(name, desc string, params map[string]*schema.ParameterInfo, run runFunc) *funcTool {
	return &funcTool{
		info: &schema.ToolInfo{
			Name:        name,
			Desc:        desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		run: run,
	}
}

// Info 实现 Tool
func (t *funcTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

// Invoke 实现 Tool
func (t *funcTool) Invoke(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
	if actor == nil || actor.OrgID == "" {
		return fail(msgNoOrg), nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.run(ctx, actor, args)
}

func (d *Deps) link(format string, a ...any) string {
	return strings.TrimRight(d.LinkBase, "/") + fmt.Sprintf(format, a...)
}

func actorName(a *model.Actor) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
