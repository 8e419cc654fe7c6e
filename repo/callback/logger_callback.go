package callback

import (
	"context"
	"fmt"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/callbacks"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
)

type startKey struct{}

// LoggerCallback 日志回调，记录每个节点的开始、结束与错误
type LoggerCallback struct {
	callbacks.HandlerBuilder // 可以用 callbacks.HandlerBuilder 来辅助实现 callback

	ID  string      // 会话ID
	Out chan string // 可选，控制台打印节点轨迹
}

// NewLoggerCallback 创建日志回调
func NewLoggerCallback(conversationID string, out chan string) *LoggerCallback {
	return &LoggerCallback{ID: conversationID, Out: out}
}

var graphNodes = func() map[string]bool {
	m := map[string]bool{}
	for _, n := range consts.GetNodeNameList() {
		m[n] = true
	}
	return m
}()

// OnStart 节点开始执行
func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if info == nil {
		return ctx
	}
	if graphNodes[info.Name] {
		slog.Debug("OnStart, conversation = %s, node = %s", cb.ID, info.Name)
		cb.push(fmt.Sprintf("[%s] ", info.Name))
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEnd 节点执行结束
func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil {
		return ctx
	}
	cost := time.Duration(0)
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		cost = time.Since(start)
	}

	switch v := output.(type) {
	case *ecmodel.CallbackOutput:
		if v != nil && v.Message != nil {
			slog.Debug("OnEnd, conversation = %s, model = %s, tool_calls = %d, cost = %v",
				cb.ID, info.Name, len(v.Message.ToolCalls), cost)
		}
	case *model.State:
		slog.Info("OnEnd, conversation = %s, turn finished, messages = %d, intent = %s, cost = %v",
			cb.ID, len(v.Messages), v.Intent, cost)
	default:
		if graphNodes[info.Name] {
			slog.Info("OnEnd, conversation = %s, node = %s, cost = %v", cb.ID, info.Name, cost)
		}
	}
	return ctx
}

// OnError 节点执行出错
func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	name := ""
	if info != nil {
		name = info.Name
	}
	slog.Error("OnError, conversation = %s, node = %s, err = %v", cb.ID, name, err)
	cb.push(fmt.Sprintf("[%s error] ", name))
	return ctx
}

// OnEndWithStreamOutput 图以非流式运行，收到的流直接关闭
func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

// OnStartWithStreamInput 确保输入流被正确关闭，释放相关资源
func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (cb *LoggerCallback) push(s string) {
	if cb.Out == nil {
		return
	}
	select {
	case cb.Out <- s:
	default:
	}
}
