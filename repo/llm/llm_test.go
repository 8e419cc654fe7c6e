package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorForIntent(t *testing.T) {
	fast, capable := NewFake(), NewFake()
	s := &Selector{Fast: fast, Capable: capable}
	assert.Same(t, capable, s.ForIntent(consts.IntentTool))
	assert.Same(t, fast, s.ForIntent(consts.IntentChat))
	assert.Same(t, fast, s.ForIntent(""))
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimited, true},
		{fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{errors.New("error, status code: 429, message: Too Many Requests"), true},
		{errors.New("429 RESOURCE_EXHAUSTED: Quota exceeded"), true},
		{errors.New("connection refused"), false},
		{errors.New("unexpected EOF after reading 429 bytes"), false},
		{errors.New("dial tcp 10.0.0.1:4290: i/o timeout"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsRateLimited(c.err), "%v", c.err)
	}
}

func TestFakeRecordsBoundTools(t *testing.T) {
	f := NewFake(schema.AssistantMessage("a", nil), schema.AssistantMessage("b", nil))
	bound, err := f.WithTools([]*schema.ToolInfo{{Name: "send_email"}})
	require.NoError(t, err)

	_, err = bound.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	require.NoError(t, err)
	_, err = f.Generate(context.Background(), nil)
	require.NoError(t, err)

	sets := f.BoundTools()
	require.Len(t, sets, 2)
	assert.Len(t, sets[0], 1)
	assert.Empty(t, sets[1])

	f.FailWith(ErrRateLimited)
	_, err = f.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestStructuredSchemas(t *testing.T) {
	for _, v := range []any{&model.Classification{}, &model.Summary{}, &model.Draft{}} {
		ref, err := openapi3gen.NewSchemaRefForValue(v, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, ref.Value.Properties)
	}
}
