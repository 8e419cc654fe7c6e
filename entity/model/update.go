package model

import (
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
)

// Patch 对状态的一次修改
type Patch func(s *State)

// Update 节点返回的增量更新，由图统一应用到状态上
type Update struct {
	Patches  []Patch
	Decision map[string]any // 写入 trace 的决策信息
}

// NewUpdate 创建更新
func NewUpdate(patches ...Patch) *Update {
	return &Update{Patches: patches}
}

// With 追加修改
func (u *Update) With(patches ...Patch) *Update {
	u.Patches = append(u.Patches, patches...)
	return u
}

// Decide 记录决策信息
func (u *Update) Decide(key string, value any) *Update {
	if u.Decision == nil {
		u.Decision = map[string]any{}
	}
	u.Decision[key] = value
	return u
}

// Apply 依次应用所有修改
func (u *Update) Apply(s *State) {
	if u == nil {
		return
	}
	for _, p := range u.Patches {
		if p != nil {
			p(s)
		}
	}
}

// AppendMessages 追加消息
func AppendMessages(msgs ...*schema.Message) Patch {
	return func(s *State) {
		s.Messages = append(s.Messages, msgs...)
	}
}

// SetIntent 设置意图与目标工具
func SetIntent(intent consts.Intent, targetTool string) Patch {
	return func(s *State) {
		s.Intent = intent
		s.TargetTool = targetTool
	}
}

// SetPending 设置待执行的工具调用
func SetPending(call *ToolCall, requiresApproval bool) Patch {
	return func(s *State) {
		s.PendingTool = call
		s.RequiresApproval = requiresApproval && call != nil
	}
}

// Approve 放行已确认的工具调用
func Approve() Patch {
	return func(s *State) {
		s.RequiresApproval = false
	}
}

// ClearPending 清理工具提案与确认标记
func ClearPending() Patch {
	return func(s *State) {
		s.ClearPending()
	}
}

// SetDraft 暂存邮件草稿，nil 表示清除
func SetDraft(d *DraftEmail) Patch {
	return func(s *State) {
		s.DraftEmail = d
	}
}

// ReplaceContext 整体替换上下文
func ReplaceContext(c Context) Patch {
	return func(s *State) {
		s.Context = c.Clone()
	}
}

// PruneMessages 只保留最后 keep 条消息，本轮起点随之平移
func PruneMessages(keep int) Patch {
	return func(s *State) {
		if keep <= 0 || len(s.Messages) <= keep {
			return
		}
		removed := len(s.Messages) - keep
		s.Messages = append([]*schema.Message(nil), s.Messages[removed:]...)
		s.TurnStart -= removed
		if s.TurnStart < 0 {
			s.TurnStart = 0
		}
	}
}

// Halt 本轮已给出答复，后续节点直接结束
func Halt() Patch {
	return func(s *State) {
		s.Halted = true
	}
}

// MarkRateLimited 标记限流
func MarkRateLimited() Patch {
	return func(s *State) {
		s.RateLimited = true
		s.Halted = true
	}
}
