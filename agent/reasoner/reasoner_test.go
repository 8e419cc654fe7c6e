package reasoner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/approval"
	"github.com/hildam/harvey-go/agent/tools"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/llm"
	"github.com/hildam/harvey-go/repo/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTool string

func (n namedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: string(n), Desc: "Does " + string(n) + "."}, nil
}

func (n namedTool) Invoke(ctx context.Context, actor *model.Actor, args map[string]any) (*tools.Result, error) {
	return &tools.Result{OK: true}, nil
}

var setting = conf.SettingConfig{ChatWindow: 4, ToolWindow: 6, MaxLimitToken: 4000, Timezone: "UTC"}

func newReasoner(t *testing.T, fake *llm.Fake, approvals ...string) *Reasoner {
	t.Helper()
	reg, err := tools.NewRegistry(context.Background(),
		namedTool(consts.ToolSendEmail), namedTool(consts.ToolSearchPolicies), namedTool(consts.ToolListInterviews))
	require.NoError(t, err)
	r := New(llm.NewFakeSelector(fake), reg, template.NewLoader(""), approval.NewPolicy(approvals), setting)
	r.now = func() time.Time { return time.Date(2025, 1, 31, 15, 0, 0, 0, time.UTC) }
	return r
}

func stateFor(intent consts.Intent, target string, texts ...string) *model.State {
	s := model.NewState("c1", consts.TitleNewChat, &model.Actor{UserID: "u1", OrgID: "o1"}, time.Now())
	s.Intent, s.TargetTool = intent, target
	for _, text := range texts {
		s.Messages = append(s.Messages, schema.UserMessage(text))
	}
	return s
}

func toolCallReply(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func run(t *testing.T, r *Reasoner, s *model.State) *model.Update {
	t.Helper()
	u, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	u.Apply(s)
	return u
}

func TestChatReplyBindsNoTools(t *testing.T) {
	fake := llm.NewFake(schema.AssistantMessage("Hello! How can I help?", nil))
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentChat, "", "hi")
	run(t, r, s)

	assert.Equal(t, "Hello! How can I help?", s.LastMessage().Content)
	require.Len(t, fake.BoundTools(), 1)
	assert.Nil(t, fake.BoundTools()[0])

	sys := fake.Calls()[0][0].Content
	assert.Contains(t, sys, "MODE: CHAT")
	assert.Contains(t, sys, "No tools available.")
	assert.Contains(t, sys, "Friday, January 31, 2025, 03:00 PM")
	assert.NotContains(t, sys, "ROUTER HINT")
}

func TestToolProposal(t *testing.T) {
	fake := llm.NewFake(toolCallReply("call_1", consts.ToolSendEmail, `{"recipient":"a@b.com","subject":"Hi","body":"Hello"}`))
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentTool, consts.ToolSendEmail, "send an email to a@b.com saying hello")
	run(t, r, s)

	require.NotNil(t, s.PendingTool)
	assert.Equal(t, consts.ToolSendEmail, s.PendingTool.Name)
	assert.Equal(t, "call_1", s.PendingTool.CallID)
	assert.Equal(t, "a@b.com", s.PendingTool.Args["recipient"])
	assert.False(t, s.RequiresApproval)
	assert.True(t, s.HasPendingCall())
	assert.Nil(t, s.DraftEmail)

	last := s.LastMessage()
	require.Len(t, last.ToolCalls, 1)
	assert.Equal(t, "call_1", last.ToolCalls[0].ID)

	require.Len(t, fake.BoundTools(), 1)
	assert.Len(t, fake.BoundTools()[0], 3)
	assert.Contains(t, fake.Calls()[0][0].Content, "ROUTER HINT: Use")
}

func TestToolProposalKeepsFirstCall(t *testing.T) {
	resp := toolCallReply("", consts.ToolListInterviews, "")
	resp.ToolCalls = append(resp.ToolCalls, schema.ToolCall{ID: "x", Function: schema.FunctionCall{Name: consts.ToolSearchPolicies}})
	r := newReasoner(t, llm.NewFake(resp))

	s := stateFor(consts.IntentTool, consts.ToolListInterviews, "show my interviews")
	run(t, r, s)

	require.NotNil(t, s.PendingTool)
	assert.Equal(t, consts.ToolListInterviews, s.PendingTool.Name)
	assert.NotEmpty(t, s.PendingTool.CallID)
	assert.Len(t, s.LastMessage().ToolCalls, 1)
}

func TestToolProposalNeedsApproval(t *testing.T) {
	fake := llm.NewFake(toolCallReply("call_2", consts.ToolSendEmail, `{"recipient":"a@b.com","subject":"Hi"}`))
	r := newReasoner(t, fake, consts.ToolSendEmail)

	s := stateFor(consts.IntentTool, consts.ToolSendEmail, "email a@b.com")
	run(t, r, s)

	assert.True(t, s.RequiresApproval)
	assert.False(t, s.HasPendingCall())
	assert.Contains(t, s.LastMessage().Content, "I'm ready to run send_email with:")
	assert.Empty(t, s.LastMessage().ToolCalls)
}

func TestDraftAndSendStagesDraft(t *testing.T) {
	fake := llm.NewFake(&schema.Message{
		Role:    schema.Assistant,
		Content: "Here is the draft.",
		ToolCalls: []schema.ToolCall{{
			ID:       "call_3",
			Function: schema.FunctionCall{Name: consts.ToolSendEmail, Arguments: `{"recipient":"a@b.com","subject":"Offer","body":"Welcome aboard."}`},
		}},
	})
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentTool, consts.ToolSendEmail, "draft and send an offer email to a@b.com")
	run(t, r, s)

	require.NotNil(t, s.DraftEmail)
	assert.Equal(t, model.DraftEmail{Recipient: "a@b.com", Subject: "Offer", Body: "Welcome aboard."}, *s.DraftEmail)
	assert.Equal(t, "Here is the draft.", s.LastMessage().Content)
}

func TestSendStagedDraft(t *testing.T) {
	fake := llm.NewFake()
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentTool, consts.ToolSendEmail, "draft an email to a@b.com", "send")
	s.DraftEmail = &model.DraftEmail{Recipient: "a@b.com", Subject: "Hi", Body: "Hello"}
	u := run(t, r, s)

	assert.Empty(t, fake.Calls())
	require.NotNil(t, s.PendingTool)
	assert.Equal(t, "Hello", s.PendingTool.Args["body"])
	assert.Equal(t, "draft", u.Decision["source"])
	assert.True(t, s.HasPendingCall())
}

func TestDraftInChatMode(t *testing.T) {
	fake := llm.NewFake(schema.AssistantMessage(`{"recipient":"a@b.com","subject":"Friday offsite","body":"Hi team,\n\nSee you Friday."}`, nil))
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentChat, "", "draft an email to a@b.com about the Friday offsite")
	run(t, r, s)

	require.NotNil(t, s.DraftEmail)
	assert.Equal(t, "Hi team,\n\nSee you Friday.", s.DraftEmail.Body)
	assert.Equal(t, "Here's a draft:\n\nTo: a@b.com\nSubject: Friday offsite\n\nHi team,\n\nSee you Friday.\n\nSay \"send\" to send it as is.", s.LastMessage().Content)
	assert.Nil(t, s.PendingTool)
	assert.Nil(t, fake.BoundTools()[0])
}

func TestDraftFallsBackToReply(t *testing.T) {
	fake := llm.NewFake(
		schema.AssistantMessage("not a draft", nil),
		schema.AssistantMessage("Subject: Hello", nil),
	)
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentChat, "", "draft a mail for the team")
	run(t, r, s)

	assert.Nil(t, s.DraftEmail)
	assert.Equal(t, "Subject: Hello", s.LastMessage().Content)
	assert.Len(t, fake.Calls(), 2)
}

func TestRenderDraftWithoutRecipient(t *testing.T) {
	got := renderDraft(&model.DraftEmail{Subject: "Hi", Body: "Hello"})
	assert.Equal(t, "Here's a draft:\n\nSubject: Hi\n\nHello\n\nTell me who it should go to, then say \"send\" to send it as is.", got)
}

func TestIsDraftRequest(t *testing.T) {
	assert.True(t, isDraftRequest("Draft an email to the team"))
	assert.True(t, isDraftRequest("draft something for a@b.com"))
	assert.False(t, isDraftRequest("draft and send an email"))
	assert.False(t, isDraftRequest("draft a job description"))
}

func TestBypass(t *testing.T) {
	fake := llm.NewFake()
	r := newReasoner(t, fake)

	s := stateFor(consts.IntentTool, consts.ToolSendEmail, "email a@b.com")
	s.Messages = append(s.Messages, schema.ToolMessage("Email sent to a@b.com", "call_1"))
	u := run(t, r, s)
	assert.Equal(t, "tool_result", u.Decision["bypass"])

	s = stateFor(consts.IntentTool, consts.ToolSendEmail, "yes")
	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, CallID: "call_1"}
	u = run(t, r, s)
	assert.Equal(t, "approved", u.Decision["bypass"])
	assert.NotNil(t, s.PendingTool)
	assert.Empty(t, fake.Calls())
}

func TestReplyErrors(t *testing.T) {
	r := newReasoner(t, llm.NewFake().FailWith(errors.New("429 Too Many Requests")))
	_, err := r.Run(context.Background(), stateFor(consts.IntentChat, "", "hi"))
	var ne *model.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, model.KindRateLimit, ne.Kind)

	r = newReasoner(t, llm.NewFake(schema.AssistantMessage("  ", nil)))
	_, err = r.Run(context.Background(), stateFor(consts.IntentChat, "", "hi"))
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, model.KindReasoning, ne.Kind)

	r = newReasoner(t, llm.NewFake(toolCallReply("c", consts.ToolSendEmail, "{broken")))
	_, err = r.Run(context.Background(), stateFor(consts.IntentTool, consts.ToolSendEmail, "email a@b.com"))
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, model.KindReasoning, ne.Kind)
}

func TestContextVars(t *testing.T) {
	r := newReasoner(t, llm.NewFake())
	s := stateFor(consts.IntentChat, "")
	s.Context = model.Context{CurrentGoal: "hire", ExtractedInfo: map[string]string{"role": "SRE", "city": "Pune"}}

	vars := r.contextVars(s)
	assert.Equal(t, "hire", vars["current_goal"])
	assert.Equal(t, "None", vars["last_active_topic"])
	assert.Equal(t, "- city: Pune\n- role: SRE", vars["extracted_info"])
}
