package agent

import (
	"github.com/cloudwego/eino/compose"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
)

// Predicate 转移条件
type Predicate func(s *model.State) bool

// Transition 一条转移规则，When 为空表示无条件
type Transition struct {
	When Predicate
	To   string
}

func halted(s *model.State) bool {
	return s.Halted || s.RateLimited
}

func pendingCall(s *model.State) bool {
	return s.HasPendingCall()
}

// Transitions 节点转移表，按顺序取第一条命中的规则
var Transitions = map[string][]Transition{
	consts.Router: {
		{When: halted, To: consts.Finish},
		{To: consts.Reasoner},
	},
	consts.Reasoner: {
		{When: halted, To: consts.Finish},
		{When: pendingCall, To: consts.Tool},
		{To: consts.Summarizer},
	},
	consts.Tool: {
		{To: consts.Reasoner},
	},
	consts.Summarizer: {
		{To: consts.Finish},
	},
	consts.Finish: {
		{To: compose.END},
	},
}

// Next 计算下一个节点，表中没有的节点直接结束
func Next(from string, s *model.State) string {
	for _, t := range Transitions[from] {
		if t.When == nil || t.When(s) {
			return t.To
		}
	}
	return compose.END
}

// targets 节点所有可能的后继
func targets(from string) map[string]bool {
	out := map[string]bool{}
	for _, t := range Transitions[from] {
		out[t.To] = true
	}
	return out
}

// unconditional 只有一条无条件规则的节点用普通边连接
func unconditional(from string) (string, bool) {
	ts := Transitions[from]
	if len(ts) == 1 && ts[0].When == nil {
		return ts[0].To, true
	}
	return "", false
}
