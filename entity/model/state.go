package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
)

// State 单个会话的编排状态，每轮加载、在各节点间修改、结束时整体保存
type State struct {
	// 对话消息，本轮内只追加
	Messages []*schema.Message `json:"messages,omitempty"`

	// 摘要节点维护的结构化上下文，其他节点只读
	Context Context `json:"context"`

	// 路由结果
	Intent     consts.Intent `json:"intent,omitempty"`
	TargetTool string        `json:"target_tool,omitempty"`

	// 工具调用提案与人工确认
	PendingTool      *ToolCall `json:"pending_tool,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`

	// 暂存的邮件草稿，"send" 时原样发出
	DraftEmail *DraftEmail `json:"draft_email,omitempty"`

	// 节点执行记录，只写不读
	Trace []TraceEntry `json:"trace,omitempty"`

	// 会话元信息
	Meta Meta `json:"meta"`

	// 以下为单轮内的临时字段，不持久化
	Actor       *Actor `json:"-"`
	TurnStart   int    `json:"-"` // 本轮第一条消息的下标
	Halted      bool   `json:"-"` // 本轮已给出答复，跳过剩余节点
	RateLimited bool   `json:"-"` // 本轮触发了限流
}

// Context 结构化对话上下文
type Context struct {
	CurrentGoal     string            `json:"current_goal,omitempty"`
	LastActiveTopic string            `json:"last_active_topic,omitempty"`
	ExtractedInfo   map[string]string `json:"extracted_info,omitempty"`
}

// ToolCall 工具调用提案
type ToolCall struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	CallID string         `json:"call_id"`
}

// DraftEmail 暂存的邮件草稿
type DraftEmail struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// TraceEntry 单个节点的执行记录
type TraceEntry struct {
	Node     string         `json:"node"`
	At       time.Time      `json:"at"`
	Duration time.Duration  `json:"duration"`
	Decision map[string]any `json:"decision,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Meta 会话元信息，归属用于多租户隔离
type Meta struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	OrgID          string    `json:"org_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Turns          int       `json:"turns"`
}

// Actor 已认证的操作者
type Actor struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	OrgID       string `json:"org_id"`
}

// Owns 判断会话是否属于该操作者
func (a *Actor) Owns(m Meta) bool {
	return a != nil && m.UserID == a.UserID && m.OrgID == a.OrgID
}

// NewState 创建新会话的初始状态
func NewState(conversationID, title string, actor *Actor, now time.Time) *State {
	s := &State{
		Intent: consts.IntentChat,
		Meta: Meta{
			ConversationID: conversationID,
			Title:          title,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		Actor: actor,
	}
	if actor != nil {
		s.Meta.UserID = actor.UserID
		s.Meta.OrgID = actor.OrgID
	}
	return s
}

// Clone 拷贝状态，节点在副本上工作，失败时不会留下半修改的状态
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]*schema.Message(nil), s.Messages...)
	c.Context = s.Context.Clone()
	c.Trace = append([]TraceEntry(nil), s.Trace...)
	if s.PendingTool != nil {
		c.PendingTool = s.PendingTool.Clone()
	}
	if s.DraftEmail != nil {
		d := *s.DraftEmail
		c.DraftEmail = &d
	}
	return &c
}

// Clone 拷贝上下文
func (c Context) Clone() Context {
	out := c
	if c.ExtractedInfo != nil {
		out.ExtractedInfo = make(map[string]string, len(c.ExtractedInfo))
		for k, v := range c.ExtractedInfo {
			out.ExtractedInfo[k] = v
		}
	}
	return out
}

// Clone 拷贝工具调用
func (t *ToolCall) Clone() *ToolCall {
	c := *t
	if t.Args != nil {
		c.Args = make(map[string]any, len(t.Args))
		for k, v := range t.Args {
			c.Args[k] = v
		}
	}
	return &c
}

// LastMessage 返回最后一条消息
func (s *State) LastMessage() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastUserText 返回最后一条用户消息的内容
func (s *State) LastUserText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i] != nil && s.Messages[i].Role == schema.User {
			return s.Messages[i].Content
		}
	}
	return ""
}

// TurnMessages 返回本轮新增的消息
func (s *State) TurnMessages() []*schema.Message {
	if s.TurnStart < 0 || s.TurnStart > len(s.Messages) {
		return nil
	}
	return s.Messages[s.TurnStart:]
}

// HasPendingCall 存在待执行且无需确认的工具调用
func (s *State) HasPendingCall() bool {
	return s.PendingTool != nil && !s.RequiresApproval
}

// ClearPending 同时清理工具提案与确认标记
func (s *State) ClearPending() {
	s.PendingTool = nil
	s.RequiresApproval = false
}

// AppendTrace 追加执行记录，超出上限时丢弃最旧的记录
func (s *State) AppendTrace(entry TraceEntry, limit int) {
	s.Trace = append(s.Trace, entry)
	if limit > 0 && len(s.Trace) > limit {
		s.Trace = append([]TraceEntry(nil), s.Trace[len(s.Trace)-limit:]...)
	}
}
