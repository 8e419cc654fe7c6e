package conf

import "time"

// MCPServerConfig MCP服务器配置
type MCPServerConfig struct {
	Command string            `yaml:"command" mapstructure:"command"`             // MCP服务器启动命令
	Args    []string          `yaml:"args" mapstructure:"args"`                   // 命令行参数列表
	Env     map[string]string `yaml:"env,omitempty" mapstructure:"env,omitempty"` // 环境变量映射，可选配置
	URL     string            `yaml:"url,omitempty" mapstructure:"url,omitempty"` // SSE 地址，配置后忽略 command
	Headers []string          `yaml:"headers,omitempty" mapstructure:"headers,omitempty"`
}

// MCPConfig MCP配置
type MCPConfig struct {
	Servers map[string]MCPServerConfig `yaml:"servers" mapstructure:"servers"` // MCP服务器配置映射，key为服务器名称
}

// Model 单个模型配置
type Model struct {
	ModelID     string        `yaml:"model_id" mapstructure:"model_id"`       // 模型ID
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`       // 模型服务的基础URL地址
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`         // 模型服务的API密钥
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"` // 采样温度
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`         // 单次调用超时
}

// ModelConfig 模型配置
type ModelConfig struct {
	Fast    Model `yaml:"fast" mapstructure:"fast"`       // 小模型，用于闲聊与意图分类
	Capable Model `yaml:"capable" mapstructure:"capable"` // 大模型，用于工具调用与摘要
}

// SettingConfig 应用运行配置
type SettingConfig struct {
	RouterWindow     int           `yaml:"router_window" mapstructure:"router_window"`         // 路由分类使用的消息数
	ChatWindow       int           `yaml:"chat_window" mapstructure:"chat_window"`             // 闲聊模式的历史窗口
	ToolWindow       int           `yaml:"tool_window" mapstructure:"tool_window"`             // 工具模式的历史窗口
	SummaryWindow    int           `yaml:"summary_window" mapstructure:"summary_window"`       // 摘要使用的消息数
	SummaryThreshold int           `yaml:"summary_threshold" mapstructure:"summary_threshold"` // 触发摘要的消息数
	SummaryKeep      int           `yaml:"summary_keep" mapstructure:"summary_keep"`           // 摘要后保留的消息数
	RetainedMessages int           `yaml:"retained_messages" mapstructure:"retained_messages"` // 跨轮携带的消息数
	MaxLimitToken    int           `yaml:"max_limit_token" mapstructure:"max_limit_token"`     // 单条消息最大字符数
	MaxTraceEntries  int           `yaml:"max_trace_entries" mapstructure:"max_trace_entries"` // 保留的 trace 条数
	MaxRunSteps      int           `yaml:"max_run_steps" mapstructure:"max_run_steps"`         // 图最大执行步数
	Timezone         string        `yaml:"timezone" mapstructure:"timezone"`                   // 提示词中的时区
	Cooldown         time.Duration `yaml:"cooldown" mapstructure:"cooldown"`                   // 限流后的冷却时间
	ToolTimeout      time.Duration `yaml:"tool_timeout" mapstructure:"tool_timeout"`           // 单次工具执行超时
	ApprovalTools    []string      `yaml:"approval_tools" mapstructure:"approval_tools"`       // 需要人工确认的工具
	PromptDir        string        `yaml:"prompt_dir" mapstructure:"prompt_dir"`               // 提示词覆盖目录
	LogFile          string        `yaml:"log_file" mapstructure:"log_file"`                   // 日志文件
	LogLevel         string        `yaml:"log_level" mapstructure:"log_level"`                 // 日志级别
}

// StorageConfig 会话状态存储配置
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory / sqlite / bolt
	Path   string `yaml:"path" mapstructure:"path"`     // 数据文件路径
}

// SMTPConfig SMTP 投递配置
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	StartTLS bool   `yaml:"starttls" mapstructure:"starttls"`
}

// MailConfig 邮件配置
type MailConfig struct {
	Driver    string     `yaml:"driver" mapstructure:"driver"`       // log / smtp
	From      string     `yaml:"from" mapstructure:"from"`           // 发件人
	Signature string     `yaml:"signature" mapstructure:"signature"` // 签名模板，%s 为发送人姓名
	SMTP      SMTPConfig `yaml:"smtp" mapstructure:"smtp"`
}

// HRConfig 业务数据配置
type HRConfig struct {
	DBPath    string `yaml:"db_path" mapstructure:"db_path"`       // 业务库路径
	PolicyDir string `yaml:"policy_dir" mapstructure:"policy_dir"` // 启动时导入的制度文档目录
	LinkBase  string `yaml:"link_base" mapstructure:"link_base"`   // 工具结果中链接的前缀
	OrgID     string `yaml:"org_id" mapstructure:"org_id"`         // 控制台与导入命令使用的组织
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// AppConfig 应用配置
type AppConfig struct {
	MCP     MCPConfig     `yaml:"mcp" mapstructure:"mcp"`         // MCP服务相关配置
	Model   ModelConfig   `yaml:"model" mapstructure:"model"`     // 大语言模型相关配置
	Setting SettingConfig `yaml:"setting" mapstructure:"setting"` // 应用运行时配置参数
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"` // 会话状态存储
	Mail    MailConfig    `yaml:"mail" mapstructure:"mail"`       // 邮件
	HR      HRConfig      `yaml:"hr" mapstructure:"hr"`           // 业务数据
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`   // HTTP 服务
}
