package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/agent/tools"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
)

// Executor 工具执行节点，每个提案最多执行一次
type Executor struct {
	registry *tools.Registry
	timeout  time.Duration
}

// New 创建执行节点
func New(registry *tools.Registry, timeout time.Duration) *Executor {
	return &Executor{registry: registry, timeout: timeout}
}

// Name 节点名
func (e *Executor) Name() string {
	return consts.Tool
}

// Run 执行待处理的工具调用，无论成败都清理提案
func (e *Executor) Run(ctx context.Context, state *model.State) (*model.Update, error) {
	if !state.HasPendingCall() {
		return model.NewUpdate(model.ClearPending()).Decide("skipped", true), nil
	}
	call := state.PendingTool.Clone()

	u := model.NewUpdate()
	if !comm.HasToolCall(state.Messages, call.CallID) {
		u.With(model.AppendMessages(comm.ToolCallMessage(nil, call.CallID, call.Name, call.Args)))
	}

	// 发送邮件时以暂存草稿为准
	if call.Name == consts.ToolSendEmail && state.DraftEmail != nil {
		d := state.DraftEmail
		call.Args = map[string]any{"recipient": d.Recipient, "subject": d.Subject, "body": d.Body}
		u.With(model.SetDraft(nil)).Decide("draft_override", true)
	}

	if !e.registry.Has(call.Name) {
		slog.Error("Executor failed, unknown tool = %s", call.Name)
		return nil, model.NewToolError(consts.Tool, call.Name, "no such tool", nil)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.registry.Invoke(runCtx, state.Actor, call.Name, call.Args)
	if err == nil && res == nil {
		err = fmt.Errorf("tool returned no result")
	}
	if err != nil {
		slog.Error("Executor failed, tool = %s, err = %v", call.Name, err)
		return nil, model.NewToolError(consts.Tool, call.Name, err.Error(), err)
	}
	slog.Info("Executor, tool = %s, ok = %v, cost = %v", call.Name, res.OK, time.Since(start))

	u.With(
		model.AppendMessages(schema.ToolMessage(res.Text(), call.CallID)),
		model.ClearPending(),
	).Decide("tool", call.Name).Decide("ok", res.OK)
	if res.Link != "" {
		u.Decide("link", res.Link)
	}
	return u, nil
}
