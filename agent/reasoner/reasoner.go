package reasoner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/hildam/harvey-go/agent/approval"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/agent/tools"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/llm"
	"github.com/hildam/harvey-go/repo/template"
)

const dateLayout = "Monday, January 02, 2006, 03:04 PM"

// Reasoner Harvey 推理节点：生成回复，或在工具模式下给出工具调用提案
type Reasoner struct {
	models   *llm.Selector
	registry *tools.Registry
	prompts  *template.Loader
	policy   *approval.Policy

	chatWindow int
	toolWindow int
	maxLimit   int
	loc        *time.Location
	now        func() time.Time
}

// New 创建推理节点
func New(models *llm.Selector, registry *tools.Registry, prompts *template.Loader, policy *approval.Policy, setting conf.SettingConfig) *Reasoner {
	loc, err := time.LoadLocation(setting.Timezone)
	if err != nil || setting.Timezone == "" {
		slog.Error("reasoner.New failed, load timezone %q, err = %v, fallback to UTC", setting.Timezone, err)
		loc = time.UTC
	}
	return &Reasoner{
		models:     models,
		registry:   registry,
		prompts:    prompts,
		policy:     policy,
		chatWindow: setting.ChatWindow,
		toolWindow: setting.ToolWindow,
		maxLimit:   setting.MaxLimitToken,
		loc:        loc,
		now:        time.Now,
	}
}

// Name 节点名
func (r *Reasoner) Name() string {
	return consts.Reasoner
}

// Run 生成回复或工具调用提案
func (r *Reasoner) Run(ctx context.Context, state *model.State) (*model.Update, error) {
	// 工具结果已是最终答复，不再让模型复述
	if last := state.LastMessage(); last != nil && last.Role == schema.Tool {
		slog.Info("Reasoner, bypass after tool result")
		return model.NewUpdate().Decide("bypass", "tool_result"), nil
	}
	// 用户已确认的调用直接交给执行节点
	if state.HasPendingCall() {
		return model.NewUpdate().Decide("bypass", "approved"), nil
	}

	if state.Intent == consts.IntentTool && state.TargetTool == consts.ToolSendEmail &&
		state.DraftEmail != nil && comm.Normalize(state.LastUserText()) == "send" {
		return r.proposeDraft(state), nil
	}

	if state.Intent != consts.IntentTool && isDraftRequest(state.LastUserText()) {
		u, err := r.draft(ctx, state)
		if err == nil {
			return u, nil
		}
		if llm.IsRateLimited(err) {
			return nil, model.NewNodeError(consts.Reasoner, model.KindRateLimit, err)
		}
		slog.Error("Reasoner failed, draft email, fallback to chat reply, err = %v", err)
	}

	return r.reply(ctx, state)
}

// proposeDraft 用户对草稿说 send，直接按草稿发出，不再调用模型
func (r *Reasoner) proposeDraft(state *model.State) *model.Update {
	d := state.DraftEmail
	call := &model.ToolCall{
		Name:   consts.ToolSendEmail,
		Args:   map[string]any{"recipient": d.Recipient, "subject": d.Subject, "body": d.Body},
		CallID: uuid.NewString(),
	}
	return r.propose(call, nil).Decide("source", "draft")
}

// propose 记录工具调用提案，需要确认时追加确认提示
func (r *Reasoner) propose(call *model.ToolCall, resp *schema.Message) *model.Update {
	requires := r.policy.Requires(call.Name)
	u := model.NewUpdate(model.SetPending(call, requires)).
		Decide("tool", call.Name).
		Decide("requires_approval", requires)
	if requires {
		return u.With(model.AppendMessages(schema.AssistantMessage(approval.Prompt(call), nil)))
	}
	return u.With(model.AppendMessages(comm.ToolCallMessage(resp, call.CallID, call.Name, call.Args)))
}

// reply 常规推理：闲聊模式不绑定任何工具
func (r *Reasoner) reply(ctx context.Context, state *model.State) (*model.Update, error) {
	toolMode := state.Intent == consts.IntentTool
	window := r.chatWindow
	if toolMode {
		window = r.toolWindow
	}
	history := comm.ForModel(ctx, state.Messages, window, r.maxLimit)

	vars := r.contextVars(state)
	vars["chat_mode"] = !toolMode
	vars["target_tool"] = ""
	vars["tools"] = "No tools available."
	if toolMode {
		vars["tools"] = r.registry.Schemas()
		vars["target_tool"] = state.TargetTool
	}

	msgs, err := r.prompts.Format(ctx, template.Harvey, vars, history)
	if err != nil {
		return nil, model.NewNodeError(consts.Reasoner, model.KindReasoning, err)
	}

	var cm ecmodel.BaseChatModel = r.models.ForIntent(state.Intent)
	if toolMode {
		bound, err := r.models.ForIntent(state.Intent).WithTools(r.registry.Infos())
		if err != nil {
			return nil, model.NewNodeError(consts.Reasoner, model.KindReasoning, fmt.Errorf("bind tools: %w", err))
		}
		cm = bound
	}

	start := time.Now()
	resp, err := cm.Generate(ctx, msgs)
	if err != nil {
		slog.Error("Reasoner failed, generate, intent = %s, err = %v", state.Intent, err)
		if llm.IsRateLimited(err) {
			return nil, model.NewNodeError(consts.Reasoner, model.KindRateLimit, err)
		}
		return nil, model.NewNodeError(consts.Reasoner, model.KindReasoning, err)
	}
	comm.LogUsage("Reasoner", resp)
	slog.Info("Reasoner, intent = %s, tool_calls = %d, cost = %v", state.Intent, len(resp.ToolCalls), time.Since(start))

	if toolMode && len(resp.ToolCalls) > 0 {
		return r.fromToolCall(state, history, resp)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, model.NewNodeError(consts.Reasoner, model.KindReasoning, fmt.Errorf("empty reply"))
	}
	return model.NewUpdate(
		model.AppendMessages(schema.AssistantMessage(content, nil)),
		model.ClearPending(),
	).Decide("tool_call", false), nil
}

func (r *Reasoner) fromToolCall(state *model.State, history []*schema.Message, resp *schema.Message) (*model.Update, error) {
	tc := resp.ToolCalls[0]
	if len(resp.ToolCalls) > 1 {
		slog.Info("Reasoner, %d tool calls proposed, only %s is kept", len(resp.ToolCalls), tc.Function.Name)
	}
	args, err := tools.ParseArgs(tc.Function.Arguments)
	if err != nil {
		return nil, model.NewNodeError(consts.Reasoner, model.KindReasoning, err)
	}
	callID := tc.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	call := &model.ToolCall{Name: tc.Function.Name, Args: args, CallID: callID}
	u := r.propose(call, resp)

	// 用户提到草稿时暂存本次内容，之后的 send 原样发出
	if call.Name == consts.ToolSendEmail && mentionsDraft(history) {
		body := str(args["body"])
		if body == "" {
			body = strings.TrimSpace(resp.Content)
		}
		u.With(model.SetDraft(&model.DraftEmail{
			Recipient: str(args["recipient"]),
			Subject:   str(args["subject"]),
			Body:      body,
		})).Decide("draft", true)
	}
	return u, nil
}

// contextVars 提示词中的上下文变量
func (r *Reasoner) contextVars(state *model.State) map[string]any {
	return map[string]any{
		"current_goal":      orNone(state.Context.CurrentGoal),
		"last_active_topic": orNone(state.Context.LastActiveTopic),
		"extracted_info":    formatInfo(state.Context.ExtractedInfo),
		"current_date":      r.now().In(r.loc).Format(dateLayout),
	}
}

func formatInfo(info map[string]string) string {
	if len(info) == 0 {
		return "None"
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, info[k]))
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func mentionsDraft(history []*schema.Message) bool {
	for _, m := range history {
		if m.Role == schema.User && strings.Contains(strings.ToLower(m.Content), "draft") {
			return true
		}
	}
	return false
}
