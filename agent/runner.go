package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
)

// Node 编排图中的节点，只读快照、返回增量更新
type Node interface {
	Name() string
	Run(ctx context.Context, state *model.State) (*model.Update, error)
}

// Runner 运行节点并把任何失败转换为降级更新
type Runner struct {
	traceLimit int
	now        func() time.Time
}

// NewRunner 创建运行器，traceLimit 为保留的 trace 条数
func NewRunner(traceLimit int) *Runner {
	return &Runner{traceLimit: traceLimit, now: time.Now}
}

// Run 在快照上运行节点，失败时返回降级更新
func (r *Runner) Run(ctx context.Context, n Node, snapshot *model.State) (*model.Update, model.TraceEntry) {
	start := r.now()
	entry := model.TraceEntry{Node: n.Name(), At: start}

	u, err := r.safeRun(ctx, n, snapshot)
	if err != nil {
		ne := model.AsNodeError(n.Name(), model.KindInternal, err)
		slog.Error("Runner failed, node = %s, kind = %s, err = %v", n.Name(), ne.Kind, ne)
		u = Fallback(snapshot, ne).Decide("fallback", string(ne.Kind))
		entry.Error = ne.Error()
	}
	if u == nil {
		u = model.NewUpdate()
	}
	entry.Duration = r.now().Sub(start)
	entry.Decision = u.Decision
	return u, entry
}

// Commit 应用更新并追加执行记录
func (r *Runner) Commit(state *model.State, u *model.Update, entry model.TraceEntry) {
	u.Apply(state)
	state.AppendTrace(entry, r.traceLimit)
}

func (r *Runner) safeRun(ctx context.Context, n Node, snapshot *model.State) (u *model.Update, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Runner failed, node = %s panic: %v\n%s", n.Name(), p, debug.Stack())
			u, err = nil, model.NewNodeError(n.Name(), model.KindInternal, fmt.Errorf("panic: %v", p))
		}
	}()
	return n.Run(ctx, snapshot)
}

// Fallback 节点失败时的统一降级策略
func Fallback(state *model.State, ne *model.NodeError) *model.Update {
	switch ne.Kind {
	case model.KindClassification:
		return model.NewUpdate(
			model.SetIntent(consts.IntentChat, ""),
			model.ClearPending(),
		).Decide("intent", string(consts.IntentChat))
	case model.KindSummarization:
		u := model.NewUpdate()
		if !state.RequiresApproval {
			u.With(model.ClearPending())
		}
		return u
	case model.KindReasoning:
		return model.NewUpdate(
			model.AppendMessages(schema.AssistantMessage(consts.MsgTryAgain, nil)),
			model.ClearPending(),
		)
	case model.KindTool:
		return toolFailure(state, ne)
	case model.KindRateLimit:
		u := model.NewUpdate(
			model.AppendMessages(schema.AssistantMessage(consts.MsgCoolingDown, nil)),
			model.MarkRateLimited(),
		)
		if !state.RequiresApproval {
			u.With(model.ClearPending())
		}
		return u
	default:
		return model.NewUpdate(
			model.AppendMessages(schema.AssistantMessage(consts.MsgSomethingWrong, nil)),
			model.ClearPending(),
			model.Halt(),
		)
	}
}

// toolFailure 失败原因作为该调用的结果返回，调用消息缺失时补上
func toolFailure(state *model.State, ne *model.NodeError) *model.Update {
	name, reason := ne.Tool, ne.Reason
	call := state.PendingTool
	if name == "" && call != nil {
		name = call.Name
	}
	if reason == "" {
		reason = "unknown error"
	}
	text := fmt.Sprintf("%s failed: %s", name, reason)

	u := model.NewUpdate(model.ClearPending())
	// 草稿已被这次发送取用，失败后不再保留
	if name == consts.ToolSendEmail && state.DraftEmail != nil {
		u.With(model.SetDraft(nil)).Decide("draft_cleared", true)
	}
	if call == nil || call.CallID == "" {
		return u.With(model.AppendMessages(schema.AssistantMessage(text, nil)), model.Halt())
	}
	if !comm.HasToolCall(state.Messages, call.CallID) {
		u.With(model.AppendMessages(comm.ToolCallMessage(nil, call.CallID, call.Name, call.Args)))
	}
	return u.With(model.AppendMessages(schema.ToolMessage(text, call.CallID))).Decide("tool", name).Decide("ok", false)
}
