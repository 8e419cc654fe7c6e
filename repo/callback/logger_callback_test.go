package callback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/stretchr/testify/assert"
)

func TestLoggerCallbackTrace(t *testing.T) {
	out := make(chan string, 4)
	cb := NewLoggerCallback("c1", out)
	var _ callbacks.Handler = cb

	ctx := cb.OnStart(context.Background(), &callbacks.RunInfo{Name: consts.Router}, "c1")
	_, ok := ctx.Value(startKey{}).(time.Time)
	assert.True(t, ok)
	cb.OnEnd(ctx, &callbacks.RunInfo{Name: consts.Router}, consts.Router)
	cb.OnEnd(ctx, &callbacks.RunInfo{Name: consts.Finish}, model.NewState("c1", consts.TitleNewChat, nil, time.Now()))
	cb.OnError(ctx, &callbacks.RunInfo{Name: consts.Tool}, errors.New("boom"))

	assert.Equal(t, "[router] ", <-out)
	assert.Equal(t, "[tool error] ", <-out)
}

func TestLoggerCallbackIgnoresInnerComponents(t *testing.T) {
	out := make(chan string, 1)
	cb := NewLoggerCallback("c1", out)

	cb.OnStart(context.Background(), &callbacks.RunInfo{Name: "ChatModel"}, nil)
	assert.Empty(t, out)

	sr, sw := schema.Pipe[callbacks.CallbackOutput](1)
	sw.Close()
	cb.OnEndWithStreamOutput(context.Background(), nil, sr)
}

func TestLoggerCallbackFullChannel(t *testing.T) {
	cb := NewLoggerCallback("c1", make(chan string))
	cb.OnStart(context.Background(), &callbacks.RunInfo{Name: consts.Reasoner}, nil)
	cb.OnStart(context.Background(), nil, nil)
}
