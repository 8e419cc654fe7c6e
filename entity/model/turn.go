package model

import "time"

// TurnResult 单轮对话的返回
type TurnResult struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// HistoryEntry 持久化转录中的一条记录，不随摘要裁剪
type HistoryEntry struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatReq HTTP 对话请求
type ChatReq struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResp HTTP 对话响应
type ChatResp struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}
