package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/hildam/harvey-go/agent"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/callback"
	"github.com/hildam/harvey-go/repo/checkpoint"
	"github.com/hildam/harvey-go/repo/cooldown"
)

const defaultCooldown = 60 * time.Second

// ErrNoActor 请求没有携带已认证的操作者
var ErrNoActor = errors.New("missing actor")

// Engine 执行一轮对话的编排图
type Engine interface {
	Run(ctx context.Context, state *model.State, opts ...compose.Option) (*model.State, error)
}

// Service 对外的对话入口：加载会话、执行一轮、保存状态
type Service struct {
	engine   Engine
	store    checkpoint.Store
	cooldown *cooldown.Store
	setting  conf.SettingConfig
	locks    *keyedMutex
	now      func() time.Time

	// Trace 可选，控制台打印节点轨迹
	Trace chan string
}

// NewService 创建对话服务
func NewService(engine Engine, store checkpoint.Store, cd *cooldown.Store, setting conf.SettingConfig) *Service {
	if cd == nil {
		cd = cooldown.New()
	}
	return &Service{
		engine:   engine,
		store:    store,
		cooldown: cd,
		setting:  setting,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Reply 处理一条用户消息，conversationID 为空时新建会话
func (s *Service) Reply(ctx context.Context, text string, actor *model.Actor, conversationID string) (*model.TurnResult, error) {
	if actor == nil || actor.UserID == "" {
		return nil, ErrNoActor
	}

	// 冷却期内不调用任何模型
	if s.cooldown.Active(actor.UserID) {
		slog.Info("Reply, user %s is cooling down, remaining = %v", actor.UserID, s.cooldown.Remaining(actor.UserID))
		return &model.TurnResult{Response: consts.MsgCoolingDown, ConversationID: conversationID, Title: consts.TitleError}, nil
	}

	created := conversationID == ""
	if created {
		conversationID = uuid.NewString()
	}
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	state, err := s.load(ctx, conversationID, text, actor, created)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &model.TurnResult{Response: consts.MsgConvNotFound, ConversationID: conversationID, Title: consts.TitleError}, nil
	}

	now := s.now()
	state.Actor = actor
	state.Halted, state.RateLimited = false, false
	state.TurnStart = len(state.Messages)
	state.Messages = append(state.Messages, schema.UserMessage(text))
	state.Meta.Turns++
	state.Meta.UpdatedAt = now

	response := s.run(ctx, state)

	s.retain(state)
	if err := s.store.Save(ctx, conversationID, state); err != nil {
		slog.Error("Reply failed, save checkpoint, conversation = %s, state will not carry forward, err = %v", conversationID, err)
	}
	if err := s.store.AppendHistory(ctx, conversationID,
		model.HistoryEntry{Sender: consts.SenderUser, Text: text, CreatedAt: now},
		model.HistoryEntry{Sender: consts.SenderAI, Text: response, CreatedAt: s.now()},
	); err != nil {
		slog.Error("Reply failed, append history, conversation = %s, err = %v", conversationID, err)
	}

	return &model.TurnResult{Response: response, ConversationID: conversationID, Title: state.Meta.Title}, nil
}

// load 读取会话，不存在或不属于该操作者时返回 nil
func (s *Service) load(ctx context.Context, conversationID, text string, actor *model.Actor, created bool) (*model.State, error) {
	if created {
		return model.NewState(conversationID, Title(text), actor, s.now()), nil
	}
	state, ok, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if !ok {
		return nil, nil
	}
	if !actor.Owns(state.Meta) {
		slog.Info("Reply, conversation %s is not owned by user %s", conversationID, actor.UserID)
		return nil, nil
	}
	return state, nil
}

func (s *Service) run(ctx context.Context, state *model.State) string {
	opts := []compose.Option{compose.WithCallbacks(callback.NewLoggerCallback(state.Meta.ConversationID, s.Trace))}
	out, err := s.engine.Run(agent.WithSaver(ctx, s.store), state, opts...)
	if err != nil {
		slog.Error("Reply failed, run graph, conversation = %s, err = %v", state.Meta.ConversationID, err)
		state.ClearPending()
		return consts.MsgSomethingWrong
	}
	if out != nil && out != state {
		*state = *out
	}

	if state.RateLimited {
		ttl := s.setting.Cooldown
		if ttl <= 0 {
			ttl = defaultCooldown
		}
		s.cooldown.Block(state.Actor.UserID, ttl)
		slog.Info("Reply, rate limited, user %s cooling down for %v", state.Actor.UserID, ttl)
		return consts.MsgCoolingDown
	}
	return Response(state.TurnMessages())
}

// retain 只携带最近的消息跨轮
func (s *Service) retain(state *model.State) {
	n := s.setting.RetainedMessages
	if n <= 0 || len(state.Messages) <= n {
		return
	}
	state.Messages = comm.Window(state.Messages, n)
	state.TurnStart = 0
}

// History 读取会话转录
func (s *Service) History(ctx context.Context, actor *model.Actor, conversationID string, limit int) ([]model.HistoryEntry, error) {
	if actor == nil || actor.UserID == "" {
		return nil, ErrNoActor
	}
	state, ok, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if !ok || !actor.Owns(state.Meta) {
		return nil, ErrNotFound
	}
	return s.store.History(ctx, conversationID, limit)
}

// ErrNotFound 会话不存在或不属于该操作者
var ErrNotFound = errors.New(consts.MsgConvNotFound)

// Title 取用户第一句话的前四个词作为标题
func Title(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return consts.TitleNewChat
	}
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ") + "..."
}

// Response 本轮最后一条有内容的助手或工具消息
func Response(turn []*schema.Message) string {
	for i := len(turn) - 1; i >= 0; i-- {
		m := turn[i]
		if m == nil || (m.Role != schema.Assistant && m.Role != schema.Tool) {
			continue
		}
		if text := strings.TrimSpace(m.Content); text != "" {
			return text
		}
	}
	return consts.MsgActionCompleted
}
