package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsolatesMutations(t *testing.T) {
	s := NewState("c1", "hello", &Actor{UserID: "u1", OrgID: "o1"}, time.Now())
	s.Messages = []*schema.Message{schema.UserMessage("hi")}
	s.Context.ExtractedInfo = map[string]string{"name": "Asha"}
	s.PendingTool = &ToolCall{Name: "send_email", Args: map[string]any{"recipient": "a@b.com"}, CallID: "x"}
	s.DraftEmail = &DraftEmail{Recipient: "a@b.com", Subject: "s", Body: "b"}

	c := s.Clone()
	c.Messages = append(c.Messages, schema.AssistantMessage("hey", nil))
	c.Context.ExtractedInfo["name"] = "Ravi"
	c.PendingTool.Args["recipient"] = "x@y.com"
	c.DraftEmail.Body = "changed"

	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "Asha", s.Context.ExtractedInfo["name"])
	assert.Equal(t, "a@b.com", s.PendingTool.Args["recipient"])
	assert.Equal(t, "b", s.DraftEmail.Body)
}

func TestUpdatePatches(t *testing.T) {
	s := NewState("c1", "t", nil, time.Now())
	s.Messages = []*schema.Message{
		schema.UserMessage("1"), schema.AssistantMessage("2", nil),
		schema.UserMessage("3"), schema.AssistantMessage("4", nil),
		schema.UserMessage("5"), schema.AssistantMessage("6", nil),
	}
	s.TurnStart = 4

	u := NewUpdate(
		SetIntent(consts.IntentTool, "send_email"),
		SetPending(&ToolCall{Name: "send_email", CallID: "1"}, true),
		PruneMessages(4),
	).Decide("intent", "tool")
	u.Apply(s)

	assert.Equal(t, consts.IntentTool, s.Intent)
	assert.Equal(t, "send_email", s.TargetTool)
	assert.True(t, s.RequiresApproval)
	assert.False(t, s.HasPendingCall())
	assert.Len(t, s.Messages, 4)
	assert.Equal(t, 2, s.TurnStart)
	assert.Equal(t, "tool", u.Decision["intent"])

	ClearPending()(s)
	assert.Nil(t, s.PendingTool)
	assert.False(t, s.RequiresApproval)
}

func TestSetPendingNilNeverRequiresApproval(t *testing.T) {
	s := &State{}
	SetPending(nil, true)(s)
	assert.False(t, s.RequiresApproval)
}

func TestAppendTraceCapsLength(t *testing.T) {
	s := &State{}
	for i := 0; i < 5; i++ {
		s.AppendTrace(TraceEntry{Node: string(rune('a' + i))}, 3)
	}
	require.Len(t, s.Trace, 3)
	assert.Equal(t, "c", s.Trace[0].Node)
	assert.Equal(t, "e", s.Trace[2].Node)
}

func TestStateJSONSkipsTransientFields(t *testing.T) {
	s := NewState("c1", "t", &Actor{UserID: "u1"}, time.Now())
	s.Halted = true
	s.RateLimited = true
	s.TurnStart = 3
	s.PendingTool = &ToolCall{Name: "search_policies", Args: map[string]any{"query": "leave"}, CallID: "k"}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.Halted)
	assert.False(t, back.RateLimited)
	assert.Zero(t, back.TurnStart)
	assert.Nil(t, back.Actor)
	assert.Equal(t, "search_policies", back.PendingTool.Name)
	assert.Equal(t, "u1", back.Meta.UserID)
}

func TestLastUserTextAndTurnMessages(t *testing.T) {
	s := &State{Messages: []*schema.Message{
		schema.UserMessage("old"),
		schema.AssistantMessage("reply", nil),
		schema.UserMessage("new"),
		schema.ToolMessage("done", "call-1"),
	}}
	s.TurnStart = 2
	assert.Equal(t, "new", s.LastUserText())
	assert.Len(t, s.TurnMessages(), 2)
	assert.Equal(t, schema.Tool, s.LastMessage().Role)
}

func TestActorOwns(t *testing.T) {
	a := &Actor{UserID: "u1", OrgID: "o1"}
	assert.True(t, a.Owns(Meta{UserID: "u1", OrgID: "o1"}))
	assert.False(t, a.Owns(Meta{UserID: "u1", OrgID: "o2"}))
	var nilActor *Actor
	assert.False(t, nilActor.Owns(Meta{}))
}

func TestAsNodeError(t *testing.T) {
	base := errors.New("boom")
	ne := AsNodeError("router", KindClassification, base)
	assert.Equal(t, KindClassification, ne.Kind)
	assert.ErrorIs(t, ne, base)

	toolErr := NewToolError("", "send_email", "smtp down", nil)
	got := AsNodeError("tool", KindInternal, toolErr)
	assert.Equal(t, KindTool, got.Kind)
	assert.Equal(t, "tool", got.Node)
	assert.Equal(t, "smtp down", got.Reason)
}
