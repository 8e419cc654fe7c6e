package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
)

const defaultMaxRunSteps = 20

type (
	stateKey struct{}
	saverKey struct{}
)

// Saver 检查点写入
type Saver interface {
	Save(ctx context.Context, conversationID string, state *model.State) error
}

// WithSaver 推理节点做出决策后把状态副本写入 saver，本轮结束时的保存由调用方负责
func WithSaver(ctx context.Context, s Saver) context.Context {
	return context.WithValue(ctx, saverKey{}, s)
}

// Agent 编译好的对话图，可在会话间共享
type Agent struct {
	runnable compose.Runnable[string, *model.State]
	runner   *Runner
	nodes    map[string]Node
}

// New 按转移表构建并编译对话图
func New(ctx context.Context, setting conf.SettingConfig, nodes ...Node) (*Agent, error) {
	a := &Agent{
		runner: NewRunner(setting.MaxTraceEntries),
		nodes:  make(map[string]Node, len(nodes)),
	}
	for _, n := range nodes {
		a.nodes[n.Name()] = n
	}
	for _, name := range []string{consts.Router, consts.Reasoner, consts.Tool, consts.Summarizer} {
		if _, ok := a.nodes[name]; !ok {
			return nil, fmt.Errorf("missing node %s", name)
		}
	}

	// 状态由调用方加载，经 ctx 传入
	graph := compose.NewGraph[string, *model.State](
		compose.WithGenLocalState(func(ctx context.Context) *model.State {
			if s, ok := ctx.Value(stateKey{}).(*model.State); ok && s != nil {
				return s
			}
			return model.NewState("", consts.TitleNewChat, nil, time.Now())
		}),
	)

	for name, n := range a.nodes {
		if err := graph.AddLambdaNode(name, compose.InvokableLambda(a.step(n)), compose.WithNodeName(name)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}
	if err := graph.AddLambdaNode(consts.Finish, compose.InvokableLambda(finish), compose.WithNodeName(consts.Finish)); err != nil {
		return nil, fmt.Errorf("add node %s: %w", consts.Finish, err)
	}

	if err := graph.AddEdge(compose.START, consts.Router); err != nil {
		return nil, err
	}
	for _, name := range consts.GetNodeNameList() {
		if to, ok := unconditional(name); ok {
			if err := graph.AddEdge(name, to); err != nil {
				return nil, fmt.Errorf("add edge %s -> %s: %w", name, to, err)
			}
			continue
		}
		if err := graph.AddBranch(name, compose.NewGraphBranch(route(name), targets(name))); err != nil {
			return nil, fmt.Errorf("add branch %s: %w", name, err)
		}
	}

	maxSteps := setting.MaxRunSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxRunSteps
	}
	runnable, err := graph.Compile(ctx,
		compose.WithGraphName(consts.GraphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(maxSteps),
	)
	if err != nil {
		slog.Error("agent.New failed, compile graph, err = %v", err)
		return nil, err
	}
	a.runnable = runnable
	return a, nil
}

// Run 在 state 上执行一轮，state 被原地更新
func (a *Agent) Run(ctx context.Context, state *model.State, opts ...compose.Option) (*model.State, error) {
	ctx = context.WithValue(ctx, stateKey{}, state)
	out, err := a.runnable.Invoke(ctx, state.Meta.ConversationID, opts...)
	if err != nil {
		slog.Error("Agent run failed, conversation = %s, err = %v", state.Meta.ConversationID, err)
		return state, err
	}
	return out, nil
}

// step 节点包装为 lambda：快照上运行，锁内提交
func (a *Agent) step(n Node) func(ctx context.Context, in string) (string, error) {
	return func(ctx context.Context, in string) (string, error) {
		var snapshot *model.State
		err := compose.ProcessState[*model.State](ctx, func(_ context.Context, s *model.State) error {
			snapshot = s.Clone()
			return nil
		})
		if err != nil {
			return "", err
		}

		u, entry := a.runner.Run(ctx, n, snapshot)
		var decided *model.State
		err = compose.ProcessState[*model.State](ctx, func(_ context.Context, s *model.State) error {
			a.runner.Commit(s, u, entry)
			if checkpointAfter(n.Name(), entry) {
				decided = s.Clone()
			}
			return nil
		})
		if err == nil && decided != nil {
			save(ctx, decided)
		}
		return n.Name(), err
	}
}

// checkpointAfter 推理节点给出决策后写检查点，直通不算决策
func checkpointAfter(node string, entry model.TraceEntry) bool {
	if node != consts.Reasoner {
		return false
	}
	_, bypass := entry.Decision["bypass"]
	return !bypass
}

func save(ctx context.Context, state *model.State) {
	saver, ok := ctx.Value(saverKey{}).(Saver)
	if !ok || saver == nil {
		return
	}
	id := state.Meta.ConversationID
	if err := saver.Save(ctx, id, state); err != nil {
		slog.Error("save failed, checkpoint after reasoner, conversation = %s, err = %v", id, err)
	}
}

// route 按转移表选择后继
func route(from string) func(ctx context.Context, in string) (string, error) {
	return func(ctx context.Context, in string) (next string, err error) {
		err = compose.ProcessState[*model.State](ctx, func(_ context.Context, s *model.State) error {
			next = Next(from, s)
			return nil
		})
		slog.Debug("route, from = %s, next = %s", from, next)
		return next, err
	}
}

// finish 输出本轮最终状态
func finish(ctx context.Context, in string) (out *model.State, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, s *model.State) error {
		out = s
		return nil
	})
	return out, err
}
