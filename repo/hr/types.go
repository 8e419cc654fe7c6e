package hr

import "time"

// Member 组织成员
type Member struct {
	ID          string
	OrgID       string
	Username    string
	DisplayName string
	Email       string
	Title       string
}

// Candidate 候选人
type Candidate struct {
	ID        int64
	OrgID     string
	Name      string
	Email     string
	Phone     string
	Skills    []string
	Source    string
	Status    string
	CreatedAt time.Time
}

// Job 职位
type Job struct {
	ID           int64
	OrgID        string
	Title        string
	Description  string
	Requirements string
	Department   string
}

// Interview 面试安排
type Interview struct {
	ID             int64
	OrgID          string
	CandidateID    int64
	CandidateName  string
	CandidateEmail string
	InterviewerID  string
	JobTitle       string
	Start          time.Time
	Duration       time.Duration
	Status         string
	EventID        string
}

// Event 日历事件
type Event struct {
	ID          string
	OrgID       string
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Attendees   []string
	CreatedBy   string
}

// Leave 请假申请
type Leave struct {
	ID           int64
	OrgID        string
	EmployeeName string
	LeaveType    string
	Start        time.Time
	End          time.Time
	Status       string
}

// Days 请假天数，含首尾
func (l *Leave) Days() int {
	return int(l.End.Sub(l.Start).Hours()/24) + 1
}

// EmailLog 已发送邮件记录
type EmailLog struct {
	ID        int64
	OrgID     string
	Recipient string
	Subject   string
	Body      string
	Status    string
	SentAt    time.Time
}

// PolicySection 制度文档的一个章节
type PolicySection struct {
	OrgID   string
	Title   string // 文档标题
	Heading string // 章节标题
	Content string
}

// PolicyHit 制度搜索结果
type PolicyHit struct {
	PolicySection
	Score int
}
