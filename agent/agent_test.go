package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcNode struct {
	name string
	run  func(s *model.State) (*model.Update, error)
}

func (f *funcNode) Name() string { return f.name }

func (f *funcNode) Run(ctx context.Context, s *model.State) (*model.Update, error) {
	return f.run(s)
}

func newState(text string) *model.State {
	s := model.NewState("c1", consts.TitleNewChat, &model.Actor{UserID: "u1", OrgID: "o1"}, time.Now())
	s.Messages = []*schema.Message{schema.UserMessage(text)}
	return s
}

func TestNext(t *testing.T) {
	s := newState("hi")
	assert.Equal(t, consts.Reasoner, Next(consts.Router, s))
	assert.Equal(t, consts.Summarizer, Next(consts.Reasoner, s))
	assert.Equal(t, consts.Reasoner, Next(consts.Tool, s))
	assert.Equal(t, consts.Finish, Next(consts.Summarizer, s))
	assert.Equal(t, compose.END, Next(consts.Finish, s))
	assert.Equal(t, compose.END, Next("unknown", s))

	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, CallID: "c"}
	assert.Equal(t, consts.Tool, Next(consts.Reasoner, s))

	s.RequiresApproval = true
	assert.Equal(t, consts.Summarizer, Next(consts.Reasoner, s))

	s.RateLimited = true
	assert.Equal(t, consts.Finish, Next(consts.Router, s))
	assert.Equal(t, consts.Finish, Next(consts.Reasoner, s))

	s = newState("no")
	s.Halted = true
	assert.Equal(t, consts.Finish, Next(consts.Router, s))
}

func TestTransitionShape(t *testing.T) {
	to, ok := unconditional(consts.Tool)
	assert.True(t, ok)
	assert.Equal(t, consts.Reasoner, to)

	_, ok = unconditional(consts.Reasoner)
	assert.False(t, ok)
	assert.Equal(t, map[string]bool{consts.Finish: true, consts.Tool: true, consts.Summarizer: true}, targets(consts.Reasoner))
}

func TestFallback(t *testing.T) {
	s := newState("hi")
	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, CallID: "c1"}

	apply := func(kind model.ErrorKind) *model.State {
		c := s.Clone()
		Fallback(c, model.NewNodeError("n", kind, errors.New("boom"))).Apply(c)
		return c
	}

	c := apply(model.KindClassification)
	assert.Equal(t, consts.IntentChat, c.Intent)
	assert.Nil(t, c.PendingTool)
	assert.Len(t, c.Messages, 1)

	c = apply(model.KindSummarization)
	assert.Nil(t, c.PendingTool)
	assert.Len(t, c.Messages, 1)

	c = apply(model.KindReasoning)
	assert.Equal(t, consts.MsgTryAgain, c.LastMessage().Content)
	assert.Nil(t, c.PendingTool)

	c = apply(model.KindRateLimit)
	assert.Equal(t, consts.MsgCoolingDown, c.LastMessage().Content)
	assert.True(t, c.RateLimited)
	assert.True(t, c.Halted)

	c = apply(model.KindInternal)
	assert.Equal(t, consts.MsgSomethingWrong, c.LastMessage().Content)
	assert.True(t, c.Halted)
}

func TestFallbackKeepsAwaitedApproval(t *testing.T) {
	s := newState("what's the leave policy?")
	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, CallID: "c1"}
	s.RequiresApproval = true

	Fallback(s, model.NewNodeError(consts.Summarizer, model.KindSummarization, errors.New("boom"))).Apply(s)
	assert.NotNil(t, s.PendingTool)
	assert.True(t, s.RequiresApproval)
}

func TestToolFailure(t *testing.T) {
	s := newState("email a@b.com")
	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, CallID: "call_9"}

	Fallback(s, model.NewToolError(consts.Tool, consts.ToolSendEmail, "could not deliver the email: refused", nil)).Apply(s)

	require.Len(t, s.Messages, 3)
	assert.True(t, comm.HasToolCall(s.Messages, "call_9"))
	last := s.LastMessage()
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_9", last.ToolCallID)
	assert.Equal(t, "send_email failed: could not deliver the email: refused", last.Content)
	assert.Nil(t, s.PendingTool)

	s = newState("email a@b.com")
	Fallback(s, model.NewToolError(consts.Tool, consts.ToolSendEmail, "", errors.New("x"))).Apply(s)
	assert.Equal(t, "send_email failed: unknown error", s.LastMessage().Content)
	assert.Equal(t, schema.Assistant, s.LastMessage().Role)
	assert.True(t, s.Halted)
}

func TestToolFailureClearsDraft(t *testing.T) {
	s := newState("email a@b.com")
	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, CallID: "call_9"}
	s.DraftEmail = &model.DraftEmail{Recipient: "a@b.com", Subject: "Offer", Body: "Welcome aboard."}

	u := Fallback(s, model.NewToolError(consts.Tool, consts.ToolSendEmail, "could not deliver the email: refused", nil))
	u.Apply(s)
	assert.Nil(t, s.DraftEmail)
	assert.Equal(t, true, u.Decision["draft_cleared"])

	// 其他工具失败不动草稿
	s = newState("schedule a meeting")
	s.PendingTool = &model.ToolCall{Name: consts.ToolCreateCalendarEvent, CallID: "call_10"}
	s.DraftEmail = &model.DraftEmail{Recipient: "a@b.com", Subject: "Offer", Body: "Welcome aboard."}
	Fallback(s, model.NewToolError(consts.Tool, consts.ToolCreateCalendarEvent, "calendar unavailable", nil)).Apply(s)
	assert.NotNil(t, s.DraftEmail)
}

// step 在快照上运行节点并提交
func step(r *Runner, n Node, s *model.State) {
	u, entry := r.Run(context.Background(), n, s.Clone())
	r.Commit(s, u, entry)
}

func TestRunnerRecoversPanic(t *testing.T) {
	r := NewRunner(2)
	s := newState("hi")
	boom := &funcNode{name: consts.Reasoner, run: func(*model.State) (*model.Update, error) {
		panic("nil map")
	}}

	step(r, boom, s)
	assert.Equal(t, consts.MsgSomethingWrong, s.LastMessage().Content)
	require.Len(t, s.Trace, 1)
	assert.Contains(t, s.Trace[0].Error, "panic: nil map")

	ok := &funcNode{name: consts.Router, run: func(*model.State) (*model.Update, error) {
		return nil, nil
	}}
	step(r, ok, s)
	step(r, ok, s)
	assert.Len(t, s.Trace, 2)
	assert.Equal(t, consts.Router, s.Trace[1].Node)
}

func TestRunnerWorksOnSnapshot(t *testing.T) {
	r := NewRunner(0)
	s := newState("hi")
	sneaky := &funcNode{name: consts.Router, run: func(snap *model.State) (*model.Update, error) {
		snap.Intent = consts.IntentTool
		return nil, model.NewNodeError(consts.Router, model.KindClassification, errors.New("bad json"))
	}}

	step(r, sneaky, s)
	assert.Equal(t, consts.IntentChat, s.Intent)
	assert.Equal(t, "classification", s.Trace[0].Decision["fallback"])
}

// script 按节点名返回预设行为，记录执行顺序
type script struct {
	visited []string
	router  func(*model.State) (*model.Update, error)
	reason  func(*model.State) (*model.Update, error)
	tool    func(*model.State) (*model.Update, error)
}

func (sc *script) nodes() []Node {
	wrap := func(name string, fn func(*model.State) (*model.Update, error)) Node {
		return &funcNode{name: name, run: func(s *model.State) (*model.Update, error) {
			sc.visited = append(sc.visited, name)
			if fn == nil {
				return model.NewUpdate(), nil
			}
			return fn(s)
		}}
	}
	return []Node{
		wrap(consts.Router, sc.router),
		wrap(consts.Reasoner, sc.reason),
		wrap(consts.Tool, sc.tool),
		wrap(consts.Summarizer, nil),
	}
}

func build(t *testing.T, sc *script) *Agent {
	t.Helper()
	a, err := New(context.Background(), conf.SettingConfig{MaxTraceEntries: 50, MaxRunSteps: 20}, sc.nodes()...)
	require.NoError(t, err)
	return a
}

func TestGraphChatTurn(t *testing.T) {
	sc := &script{
		reason: func(s *model.State) (*model.Update, error) {
			return model.NewUpdate(model.AppendMessages(schema.AssistantMessage("Hello!", nil))), nil
		},
	}
	a := build(t, sc)

	s := newState("hi")
	out, err := a.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Same(t, s, out)
	assert.Equal(t, []string{consts.Router, consts.Reasoner, consts.Summarizer}, sc.visited)
	assert.Equal(t, "Hello!", out.LastMessage().Content)
	assert.Len(t, out.Trace, 3)
}

func TestGraphToolTurn(t *testing.T) {
	sc := &script{
		reason: func(s *model.State) (*model.Update, error) {
			if s.LastMessage().Role == schema.Tool {
				return model.NewUpdate(), nil
			}
			call := &model.ToolCall{Name: consts.ToolSendEmail, CallID: "call_1"}
			return model.NewUpdate(model.SetPending(call, false)), nil
		},
		tool: func(s *model.State) (*model.Update, error) {
			return model.NewUpdate(
				model.AppendMessages(schema.ToolMessage("Email sent to a@b.com", s.PendingTool.CallID)),
				model.ClearPending(),
			), nil
		},
	}
	a := build(t, sc)

	out, err := a.Run(context.Background(), newState("send an email to a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{consts.Router, consts.Reasoner, consts.Tool, consts.Reasoner, consts.Summarizer}, sc.visited)
	assert.Equal(t, "Email sent to a@b.com", out.LastMessage().Content)
	assert.Nil(t, out.PendingTool)
}

type recordSaver struct {
	ids   []string
	saved []*model.State
}

func (r *recordSaver) Save(ctx context.Context, id string, s *model.State) error {
	r.ids = append(r.ids, id)
	r.saved = append(r.saved, s)
	return nil
}

func TestGraphCheckpointsAfterReasoner(t *testing.T) {
	sc := &script{
		reason: func(s *model.State) (*model.Update, error) {
			if s.LastMessage().Role == schema.Tool {
				return model.NewUpdate().Decide("bypass", "tool_result"), nil
			}
			call := &model.ToolCall{Name: consts.ToolSendEmail, CallID: "call_1"}
			return model.NewUpdate(model.SetPending(call, false)).Decide("tool", call.Name), nil
		},
		tool: func(s *model.State) (*model.Update, error) {
			return model.NewUpdate(
				model.AppendMessages(schema.ToolMessage("Email sent to a@b.com", s.PendingTool.CallID)),
				model.ClearPending(),
			), nil
		},
	}
	a := build(t, sc)
	saver := &recordSaver{}

	state := newState("send an email to a@b.com")
	out, err := a.Run(WithSaver(context.Background(), saver), state)
	require.NoError(t, err)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, []string{state.Meta.ConversationID}, saver.ids)
	decided := saver.saved[0]
	require.NotNil(t, decided.PendingTool)
	assert.Equal(t, "call_1", decided.PendingTool.CallID)
	assert.NotSame(t, out, decided)
	assert.Nil(t, out.PendingTool)
}

func TestGraphRateLimitedTurn(t *testing.T) {
	sc := &script{
		router: func(*model.State) (*model.Update, error) {
			return nil, model.NewNodeError(consts.Router, model.KindRateLimit, errors.New("429"))
		},
	}
	a := build(t, sc)

	out, err := a.Run(context.Background(), newState("hi"))
	require.NoError(t, err)
	assert.Equal(t, []string{consts.Router}, sc.visited)
	assert.True(t, out.RateLimited)
	assert.Equal(t, consts.MsgCoolingDown, out.LastMessage().Content)
}

func TestGraphToolErrorIsAnswered(t *testing.T) {
	sc := &script{
		reason: func(s *model.State) (*model.Update, error) {
			if s.LastMessage().Role == schema.Tool {
				return model.NewUpdate(), nil
			}
			return model.NewUpdate(model.SetPending(&model.ToolCall{Name: consts.ToolSendEmail, CallID: "call_2"}, false)), nil
		},
		tool: func(s *model.State) (*model.Update, error) {
			return nil, model.NewToolError(consts.Tool, consts.ToolSendEmail, "could not deliver the email: refused", nil)
		},
	}
	a := build(t, sc)

	out, err := a.Run(context.Background(), newState("email a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, "send_email failed: could not deliver the email: refused", out.LastMessage().Content)
	assert.Nil(t, out.PendingTool)
}

func TestNewRequiresNodes(t *testing.T) {
	_, err := New(context.Background(), conf.SettingConfig{}, &funcNode{name: consts.Router})
	assert.Error(t, err)
}
