package comm

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(n int) []*schema.Message {
	out := make([]*schema.Message, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out = append(out, schema.UserMessage("u"))
		} else {
			out = append(out, schema.AssistantMessage("a", nil))
		}
	}
	return out
}

func TestWindowIsBounded(t *testing.T) {
	for _, total := range []int{0, 1, 4, 7, 50, 500} {
		for _, n := range []int{1, 4, 6, 20} {
			got := Window(history(total), n)
			assert.LessOrEqual(t, len(got), n)
		}
	}
	assert.Nil(t, Window(history(3), 0))
}

func TestWindowDropsLeadingToolResult(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("send it"),
		schema.AssistantMessage("", []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "send_email"}}}),
		schema.ToolMessage("Email sent", "c1"),
		schema.UserMessage("thanks"),
	}
	got := Window(msgs, 2)
	require.Len(t, got, 1)
	assert.Equal(t, schema.User, got[0].Role)
}

func TestClipMessagesDoesNotMutate(t *testing.T) {
	long := schema.UserMessage(strings.Repeat("x", 10) + "tail")
	out := ClipMessages(context.Background(), []*schema.Message{long, nil}, 4)
	require.Len(t, out, 1)
	assert.Equal(t, "tail", out[0].Content)
	assert.Len(t, long.Content, 14)
}

func TestClipMessagesKeepsRunes(t *testing.T) {
	msg := schema.UserMessage("ab你好")
	out := ClipMessages(context.Background(), []*schema.Message{msg}, 5)
	require.Len(t, out, 1)
	assert.True(t, utf8.ValidString(out[0].Content))
	assert.Equal(t, "好", out[0].Content)
}

func TestExtractJSON(t *testing.T) {
	var v struct {
		Intent   string `json:"intent"`
		ToolName string `json:"tool_name"`
	}
	require.NoError(t, ExtractJSON(`{"intent":"tool","tool_name":"send_email"}`, &v))
	assert.Equal(t, "send_email", v.ToolName)

	require.NoError(t, ExtractJSON("```json\n{\"intent\": \"chat\", \"tool_name\": \"None\"}\n```", &v))
	assert.Equal(t, "chat", v.Intent)

	assert.ErrorIs(t, ExtractJSON("no braces here", &v), ErrNoJSON)
	assert.ErrorIs(t, ExtractJSON("  ", &v), ErrNoJSON)
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"please", "draft", "an", "email"}, Words("Please DRAFT, an email!"))
	assert.Equal(t, "send", Normalize("  Send! "))
}
