package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/approval"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/agent/tools"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/llm"
	"github.com/hildam/harvey-go/repo/template"
)

// Router 意图路由：先走规则，规则不命中时调用小模型分类
type Router struct {
	classifier ecmodel.BaseChatModel
	registry   *tools.Registry
	prompts    *template.Loader
	window     int
	maxLimit   int
}

// New 创建路由节点
func New(classifier ecmodel.BaseChatModel, registry *tools.Registry, prompts *template.Loader, window, maxLimit int) *Router {
	return &Router{
		classifier: classifier,
		registry:   registry,
		prompts:    prompts,
		window:     window,
		maxLimit:   maxLimit,
	}
}

// Name 节点名
func (r *Router) Name() string {
	return consts.Router
}

// Run 判断本轮意图
func (r *Router) Run(ctx context.Context, state *model.State) (*model.Update, error) {
	last := state.LastMessage()
	if last == nil || last.Role != schema.User {
		return chat(), nil
	}
	text := last.Content

	// 待确认的工具调用，先看用户是否给出答复
	if state.RequiresApproval && state.PendingTool != nil {
		switch approval.Classify(text) {
		case approval.Accept:
			slog.Info("Router, approval accepted, tool = %s", state.PendingTool.Name)
			return model.NewUpdate(
				model.SetIntent(consts.IntentTool, state.PendingTool.Name),
				model.Approve(),
			).Decide("approval", string(approval.Accept)).Decide("tool", state.PendingTool.Name), nil
		case approval.Reject:
			slog.Info("Router, approval rejected, tool = %s", state.PendingTool.Name)
			return model.NewUpdate(
				model.SetIntent(consts.IntentChat, ""),
				model.ClearPending(),
				model.AppendMessages(schema.AssistantMessage(consts.MsgApprovalCanceled, nil)),
				model.Halt(),
			).Decide("approval", string(approval.Reject)), nil
		}
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	if comm.Normalize(lower) == "send" && state.DraftEmail != nil {
		return model.NewUpdate(
			model.SetIntent(consts.IntentTool, consts.ToolSendEmail),
		).Decide("intent", string(consts.IntentTool)).Decide("tool", consts.ToolSendEmail).Decide("rule", "send_draft"), nil
	}
	if strings.Contains(lower, "draft") && !strings.Contains(lower, "send") {
		return chat().Decide("rule", "draft_only"), nil
	}

	intent, toolName, err := r.classify(ctx, state)
	if err != nil {
		return nil, err
	}
	if intent == consts.IntentChat {
		return chat(), nil
	}
	return model.NewUpdate(
		model.SetIntent(intent, toolName),
	).Decide("intent", string(intent)).Decide("tool", toolName), nil
}

func (r *Router) classify(ctx context.Context, state *model.State) (consts.Intent, string, error) {
	history := comm.ForModel(ctx, state.Messages, r.window, r.maxLimit)
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	msgs, err := r.prompts.Format(ctx, template.Router, map[string]any{
		"tools":   r.registry.Catalogue(),
		"history": strings.Join(lines, "\n"),
	}, nil)
	if err != nil {
		return "", "", model.NewNodeError(consts.Router, model.KindClassification, err)
	}

	start := time.Now()
	resp, err := r.classifier.Generate(ctx, msgs)
	if err != nil {
		slog.Error("Router failed, classify, err = %v", err)
		if llm.IsRateLimited(err) {
			return "", "", model.NewNodeError(consts.Router, model.KindRateLimit, err)
		}
		return "", "", model.NewNodeError(consts.Router, model.KindClassification, err)
	}
	comm.LogUsage("Router", resp)

	var out model.Classification
	if err := comm.ExtractJSON(resp.Content, &out); err != nil {
		return "", "", model.NewNodeError(consts.Router, model.KindClassification, fmt.Errorf("parse classification %q: %w", resp.Content, err))
	}

	intent, toolName := r.normalize(out)
	slog.Info("Router decision, intent = %s, tool = %s, cost = %v", intent, toolName, time.Since(start))
	return intent, toolName, nil
}

// normalize 纠正模型把工具名写进 intent 的情况，未知工具按闲聊处理
func (r *Router) normalize(out model.Classification) (consts.Intent, string) {
	intent := strings.ToLower(strings.TrimSpace(out.Intent))
	toolName := strings.TrimSpace(out.ToolName)
	switch strings.ToLower(toolName) {
	case "", "none", "null":
		toolName = ""
	}

	switch consts.Intent(intent) {
	case consts.IntentChat:
		return consts.IntentChat, ""
	case consts.IntentTool:
	default:
		if !r.registry.Has(intent) {
			return consts.IntentChat, ""
		}
		toolName = intent
	}

	if toolName != "" && !r.registry.Has(toolName) {
		return consts.IntentChat, ""
	}
	return consts.IntentTool, toolName
}

// chat 闲聊意图，同时清理残留的工具提案
func chat() *model.Update {
	return model.NewUpdate(
		model.SetIntent(consts.IntentChat, ""),
		model.ClearPending(),
	).Decide("intent", string(consts.IntentChat))
}
