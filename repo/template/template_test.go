package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTemplates(t *testing.T) {
	ctx := context.Background()
	l := NewLoader("")
	for _, name := range []string{Harvey, Router, Summarizer, Drafter} {
		content, err := l.Get(ctx, name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, content)
	}
	_, err := l.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "router.md"), []byte("custom {{ tools }}"), 0o644))

	l := NewLoader(dir)
	content, err := l.Get(context.Background(), Router)
	require.NoError(t, err)
	assert.Equal(t, "custom {{ tools }}", content)

	// 覆盖目录中缺失的模板回退到内置版本
	content, err = l.Get(context.Background(), Summarizer)
	require.NoError(t, err)
	assert.Contains(t, content, "current_goal")
}

func TestFormatHarvey(t *testing.T) {
	history := []*schema.Message{schema.UserMessage("hi")}
	msgs, err := NewLoader("").Format(context.Background(), Harvey, map[string]any{
		"current_goal":      "None",
		"current_date":      "Monday, January 05, 2026, 10:00 AM",
		"last_active_topic": "None",
		"extracted_info":    "None",
		"tools":             "No tools available.",
		"target_tool":       "",
		"chat_mode":         true,
	}, history)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "MODE: CHAT")
	assert.NotContains(t, msgs[0].Content, "ROUTER HINT")
	assert.Equal(t, "hi", msgs[1].Content)
}
