package llm

import (
	"errors"
	"strings"

	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/hildam/harvey-go/entity/consts"
)

// ErrRateLimited 模型服务限流或配额耗尽
var ErrRateLimited = errors.New("model rate limited")

// Selector 模型选择器，构造后只读，可在会话间共享
type Selector struct {
	Fast    ecmodel.ToolCallingChatModel // 闲聊与分类
	Capable ecmodel.ToolCallingChatModel // 工具调用

	Classifier ecmodel.BaseChatModel // {intent, tool_name}
	Summarizer ecmodel.BaseChatModel // 上下文摘要
	Drafter    ecmodel.BaseChatModel // 邮件草稿
}

// ForIntent 按意图选择模型
func (s *Selector) ForIntent(intent consts.Intent) ecmodel.ToolCallingChatModel {
	if intent == consts.IntentTool {
		return s.Capable
	}
	return s.Fast
}

var rateLimitMarkers = []string{
	"status code: 429",
	"status 429",
	"http 429",
	"rate limit",
	"ratelimit",
	"rate_limit",
	"too many requests",
	"quota",
	"resource_exhausted",
	"resource exhausted",
	"resourceexhausted",
}

// IsRateLimited 判断错误是否为限流
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
