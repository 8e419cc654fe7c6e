package consts

const (
	GraphName = "harvey_agent" // 对话图名称，用于标识整个工作流
)

// 节点名字
const (
	Router     = "router"     // 意图路由，判断本轮是闲聊还是工具调用
	Reasoner   = "reasoner"   // Harvey 推理节点，生成回复或工具调用提案
	Tool       = "tool"       // 工具执行节点
	Summarizer = "summarizer" // 上下文摘要节点
	Finish     = "finish"     // 终止节点，输出本轮最终状态
)

// GetNodeNameList 返回列表
func GetNodeNameList() []string {
	return []string{
		Router,
		Reasoner,
		Tool,
		Summarizer,
		Finish,
	}
}

// Intent 用户意图
type Intent string

// 意图取值
const (
	IntentChat Intent = "chat" // 闲聊，不绑定任何工具
	IntentTool Intent = "tool" // 需要执行业务动作
)

// 内置工具名字
const (
	ToolSendEmail           = "send_email"
	ToolCreateCalendarEvent = "create_calendar_event"
	ToolScheduleInterview   = "schedule_interview"
	ToolSearchPolicies      = "search_policies"
	ToolSearchCandidates    = "search_candidates"
	ToolAddCandidate        = "add_candidate"
	ToolCreateJob           = "create_job_description"
	ToolShortlist           = "shortlist_candidates"
	ToolListInterviews      = "list_interviews"
	ToolListLeaveRequests   = "list_leave_requests"
)

// 消息角色，对应持久化转录中的 sender 字段
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// 面向用户的固定文案
const (
	MsgTryAgain         = "I couldn't process that just now. Please try again."
	MsgCoolingDown      = "System is cooling down due to high traffic. Please try again in 60 seconds."
	MsgConvNotFound     = "Conversation not found."
	MsgActionCompleted  = "Action completed."
	MsgSomethingWrong   = "Something went wrong. Try again!"
	MsgApprovalCanceled = "Okay, I've cancelled that action."
	TitleNewChat        = "New Chat"
	TitleError          = "Error"
)
