package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := New(conf.StorageConfig{Driver: "sqlite", Path: filepath.Join(dir, "cp.db")})
	require.NoError(t, err)
	boltStore, err := New(conf.StorageConfig{Driver: "bolt", Path: filepath.Join(dir, "cp.bolt")})
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
		"bolt":   boltStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func sampleState() *model.State {
	s := model.NewState("conv-1", "Send an email to...", &model.Actor{UserID: "u1", OrgID: "o1"}, time.Now())
	s.Messages = []*schema.Message{
		schema.UserMessage("send an email to a@b.com saying thanks"),
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: consts.ToolSendEmail, Arguments: `{"recipient":"a@b.com"}`},
		}}),
	}
	s.Intent = consts.IntentTool
	s.TargetTool = consts.ToolSendEmail
	s.Context = model.Context{
		CurrentGoal:     "thank the candidate",
		LastActiveTopic: "recruiting",
		ExtractedInfo:   map[string]string{"recipient": "a@b.com"},
	}
	s.PendingTool = &model.ToolCall{Name: consts.ToolSendEmail, Args: map[string]any{"recipient": "a@b.com"}, CallID: "call-1"}
	s.RequiresApproval = true
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Load(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			want := sampleState()
			require.NoError(t, store.Save(ctx, "conv-1", want))

			got, ok, err := store.Load(ctx, "conv-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want.Intent, got.Intent)
			assert.Equal(t, want.Context, got.Context)
			assert.Equal(t, want.PendingTool, got.PendingTool)
			assert.True(t, got.RequiresApproval)
			assert.Equal(t, "u1", got.Meta.UserID)
			require.Len(t, got.Messages, 2)
			assert.Equal(t, "call-1", got.Messages[1].ToolCalls[0].ID)
		})
	}
}

func TestStoreSaveReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			first := sampleState()
			require.NoError(t, store.Save(ctx, "conv-1", first))

			second := sampleState()
			second.ClearPending()
			second.Intent = consts.IntentChat
			second.Context = model.Context{}
			require.NoError(t, store.Save(ctx, "conv-1", second))

			got, ok, err := store.Load(ctx, "conv-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Nil(t, got.PendingTool)
			assert.False(t, got.RequiresApproval)
			assert.Equal(t, consts.IntentChat, got.Intent)
			assert.Empty(t, got.Context.ExtractedInfo)
		})
	}
}

func TestMemoryStoreDoesNotShareState(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	s := sampleState()
	require.NoError(t, store.Save(ctx, "conv-1", s))

	s.PendingTool.Args["recipient"] = "mutated@b.com"
	got, _, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.PendingTool.Args["recipient"])
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.AppendHistory(ctx, "conv-1",
				model.HistoryEntry{Sender: consts.SenderUser, Text: "one", CreatedAt: now},
				model.HistoryEntry{Sender: consts.SenderAI, Text: "two", CreatedAt: now},
			))
			require.NoError(t, store.AppendHistory(ctx, "conv-1",
				model.HistoryEntry{Sender: consts.SenderUser, Text: "three", CreatedAt: now},
			))
			require.NoError(t, store.AppendHistory(ctx, "conv-2",
				model.HistoryEntry{Sender: consts.SenderUser, Text: "other", CreatedAt: now},
			))

			all, err := store.History(ctx, "conv-1", 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "one", all[0].Text)
			assert.Equal(t, "three", all[2].Text)
			assert.True(t, now.Equal(all[0].CreatedAt))

			last, err := store.History(ctx, "conv-1", 2)
			require.NoError(t, err)
			require.Len(t, last, 2)
			assert.Equal(t, "two", last[0].Text)
			assert.Equal(t, "three", last[1].Text)

			none, err := store.History(ctx, "missing", 5)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestUnknownDriver(t *testing.T) {
	_, err := New(conf.StorageConfig{Driver: "redis"})
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not gzip"))
	assert.Error(t, err)
}
