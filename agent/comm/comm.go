package comm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/schema"
)

// ErrNoJSON 模型输出中找不到 JSON 对象
var ErrNoJSON = errors.New("no json object in model output")

// Window 返回最后 n 条消息，窗口不以孤立的工具结果开头
func Window(msgs []*schema.Message, n int) []*schema.Message {
	if n <= 0 {
		return nil
	}
	start := 0
	if len(msgs) > n {
		start = len(msgs) - n
	}
	out := make([]*schema.Message, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		if m == nil {
			continue
		}
		if len(out) == 0 && m.Role == schema.Tool {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ClipMessages 截断超长消息，返回副本，不修改入参
func ClipMessages(ctx context.Context, inputList []*schema.Message, maxLimit int) []*schema.Message {
	if maxLimit <= 0 {
		return inputList
	}

	sum := 0
	out := make([]*schema.Message, 0, len(inputList))
	for _, input := range inputList {
		if input == nil {
			slog.Debug("ClipMessages debug, input is nil")
			continue
		}

		length := len(input.Content)
		if length > maxLimit {
			slog.Debug("ClipMessages debug, input content length is %d, max limit token is %d", length, maxLimit)
			// 截断, 取后半段部分的最新信息
			cut := length - maxLimit
			for cut < length && !utf8.RuneStart(input.Content[cut]) {
				cut++
			}
			cp := *input
			cp.Content = input.Content[cut:]
			input = &cp
		}

		sum += len(input.Content)
		out = append(out, input)
	}

	slog.Debug("ClipMessages debug, input content sum length is %d", sum)
	return out
}

// ForModel 组装送给模型的历史：有界窗口 + 截断
func ForModel(ctx context.Context, msgs []*schema.Message, n, maxLimit int) []*schema.Message {
	return ClipMessages(ctx, Window(msgs, n), maxLimit)
}

// ExtractJSON 从模型输出中解析 JSON 对象，兼容 ```json 代码块与前后缀文字
func ExtractJSON(content string, v any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}

// Words 按非字母数字切分并转小写
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
}

// Normalize 小写并去掉首尾空白与标点
func Normalize(text string) string {
	return strings.TrimFunc(strings.ToLower(strings.TrimSpace(text)), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

// LogUsage 记录模型用量
func LogUsage(node string, msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	u := msg.ResponseMeta.Usage
	slog.Info("%s usage, prompt_tokens = %d, completion_tokens = %d, total_tokens = %d",
		node, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

// ToolCallMessage 只带一个工具调用的 assistant 消息，base 不为空时保留其内容与元信息
func ToolCallMessage(base *schema.Message, callID, name string, args map[string]any) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant}
	if base != nil {
		cp := *base
		msg = &cp
	}
	raw, err := json.Marshal(args)
	if err != nil || len(args) == 0 {
		raw = []byte("{}")
	}
	msg.ToolCalls = []schema.ToolCall{{
		ID:       callID,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: string(raw)},
	}}
	return msg
}

// HasToolCall 历史中是否已有该调用的 assistant 消息
func HasToolCall(msgs []*schema.Message, callID string) bool {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] == nil {
			continue
		}
		for _, tc := range msgs[i].ToolCalls {
			if tc.ID == callID {
				return true
			}
		}
	}
	return false
}
