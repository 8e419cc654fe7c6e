package approval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/entity/model"
)

// Feedback 用户对待确认调用的答复
type Feedback string

const (
	Unknown Feedback = ""
	Accept  Feedback = "accept"
	Reject  Feedback = "reject"
)

var accepts = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "sure": true, "ok": true, "okay": true,
	"confirm": true, "confirmed": true, "approve": true, "approved": true, "proceed": true,
	"go ahead": true, "do it": true, "send it": true, "yes please": true, "looks good": true,
}

var rejects = map[string]bool{
	"no": true, "n": true, "nope": true, "cancel": true, "stop": true, "abort": true,
	"reject": true, "don't": true, "dont": true, "do not": true, "never mind": true, "nevermind": true,
}

// Policy 需要人工确认的工具集合，构造后只读
type Policy struct {
	tools map[string]bool
}

// NewPolicy 创建确认策略，列表为空时所有工具直接执行
func NewPolicy(names []string) *Policy {
	p := &Policy{tools: make(map[string]bool, len(names))}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			p.tools[n] = true
		}
	}
	return p
}

// Requires 判断工具调用是否需要确认
func (p *Policy) Requires(name string) bool {
	return p != nil && p.tools[name]
}

// Tools 返回需要确认的工具名
func (p *Policy) Tools() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.tools))
	for n := range p.tools {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Classify 识别确认或拒绝，整句或不超过四个词的开头短语命中才算
func Classify(text string) Feedback {
	norm := comm.Normalize(text)
	if norm == "" {
		return Unknown
	}
	if rejects[norm] {
		return Reject
	}
	if accepts[norm] {
		return Accept
	}

	words := comm.Words(norm)
	if len(words) == 0 || len(words) > 4 {
		return Unknown
	}
	for n := 2; n >= 1; n-- {
		if len(words) < n {
			continue
		}
		head := strings.Join(words[:n], " ")
		if rejects[head] {
			return Reject
		}
		if accepts[head] {
			return Accept
		}
	}
	return Unknown
}

// Prompt 展示给用户的确认提示
func Prompt(call *model.ToolCall) string {
	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "I'm ready to run %s", call.Name)
	if len(keys) > 0 {
		sb.WriteString(" with:")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n- %s: %v", k, call.Args[k])
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString(". ")
	}
	sb.WriteString(`Reply "yes" to confirm or "no" to cancel.`)
	return sb.String()
}
