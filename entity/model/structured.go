package model

// Classification 路由分类模型的输出
type Classification struct {
	Intent   string `json:"intent"`
	ToolName string `json:"tool_name"`
}

// Summary 摘要模型的输出
type Summary struct {
	CurrentGoal     string            `json:"current_goal"`
	ExtractedInfo   map[string]string `json:"extracted_info"`
	LastActiveTopic string            `json:"last_active_topic"`
	TopicShift      bool              `json:"topic_shift"`
}

// Context 转为对话上下文
func (s *Summary) Context() Context {
	c := Context{
		CurrentGoal:     s.CurrentGoal,
		LastActiveTopic: s.LastActiveTopic,
	}
	if len(s.ExtractedInfo) > 0 {
		c.ExtractedInfo = make(map[string]string, len(s.ExtractedInfo))
		for k, v := range s.ExtractedInfo {
			c.ExtractedInfo[k] = v
		}
	}
	return c
}

// Draft 起草模型的输出
type Draft struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
