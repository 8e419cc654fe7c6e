package conf

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/HildaM/logs/slog"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix 环境变量前缀，HARVEY_SETTING__COOLDOWN=30s 覆盖 setting.cooldown
	EnvPrefix = "HARVEY_"
	// DefaultPath 默认配置文件
	DefaultPath = "config.yaml"
)

var (
	// 全局 koanf 实例，使用 "." 作为键路径分隔符
	k = koanf.New(".")
	// 配置读写锁，确保并发安全
	configMu sync.RWMutex
	// 文件提供者
	f *file.File
	// 缓存的配置实例
	appConf *AppConfig
)

// Defaults 内置默认配置
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"setting.router_window":     4,
		"setting.chat_window":       4,
		"setting.tool_window":       6,
		"setting.summary_window":    20,
		"setting.summary_threshold": 8,
		"setting.summary_keep":      4,
		"setting.retained_messages": 10,
		"setting.max_limit_token":   4000,
		"setting.max_trace_entries": 200,
		"setting.max_run_steps":     20,
		"setting.timezone":          "Asia/Kolkata",
		"setting.cooldown":          "60s",
		"setting.tool_timeout":      "60s",
		"setting.log_file":          "logs/app.log",
		"setting.log_level":         "debug",
		"model.fast.timeout":        "60s",
		"model.capable.timeout":     "120s",
		"storage.driver":            "memory",
		"storage.path":              "data/checkpoints.db",
		"mail.driver":               "log",
		"mail.from":                 "harvey@localhost",
		"mail.signature":            "Best regards,\n%s",
		"hr.db_path":                "data/hr.db",
		"hr.org_id":                 "default",
		"server.addr":               ":8888",
	}
}

// Init 初始化配置
func Init(path string) error {
	if path == "" {
		path = DefaultPath
	}

	// 加载配置
	if err := loadConfig(path); err != nil {
		return fmt.Errorf("Init config failed, load config err: %v", err)
	}

	// 启动配置文件监听
	startConfigWatch()

	// 初始化日志
	cfg := GetCfg()
	if err := InitLogger(cfg.Setting.LogFile, cfg.Setting.LogLevel); err != nil {
		return err
	}

	slog.Info("Init config: storage=%s mail=%s fast=%s capable=%s",
		cfg.Storage.Driver, cfg.Mail.Driver, cfg.Model.Fast.ModelID, cfg.Model.Capable.ModelID)
	return nil
}

// InitLogger 初始化日志
func InitLogger(path, level string) error {
	if level == "" {
		level = "debug"
	}
	if err := slog.InitFile(path, slog.WithLevel(level), slog.WithColor(false)); err != nil {
		return fmt.Errorf("Init log failed, err: %+v", err)
	}
	return nil
}

// Load 按 默认值 -> 配置文件 -> 环境变量 的顺序构建配置，不修改全局实例
func Load(path string) (*koanf.Koanf, *AppConfig, error) {
	kk := koanf.New(".")
	if err := kk.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := kk.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, nil, fmt.Errorf("failed to load config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := kk.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load env: %w", err)
	}

	// 解析配置到结构体，使用 yaml 标签
	var config AppConfig
	if err := kk.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return kk, &config, nil
}

// envKey HARVEY_SETTING__TOOL_TIMEOUT -> setting.tool_timeout
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// loadConfig 加载配置
func loadConfig(path string) error {
	configMu.Lock()
	defer configMu.Unlock()

	kk, config, err := Load(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		f = file.Provider(path)
	}

	// 更新全局配置实例
	k = kk
	appConf = config
	watchedPath = path
	return nil
}

// GetCfg 获取配置
func GetCfg() *AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()
	if appConf == nil {
		_, config, err := Load("")
		if err != nil {
			return &AppConfig{}
		}
		return config
	}
	return appConf
}

// SetCfg 替换全局配置，供命令行与测试使用
func SetCfg(cfg *AppConfig) {
	configMu.Lock()
	defer configMu.Unlock()
	appConf = cfg
}

// startConfigWatch 启动配置文件监听
func startConfigWatch() {
	if f == nil {
		log.Printf("file provider not initialized")
		return
	}

	// 监听文件变化并在变化时重新加载配置
	err := f.Watch(func(event interface{}, err error) {
		if err != nil {
			log.Printf("Config file watch error: %v", err)
			return
		}

		// 配置文件发生变化，重新加载
		log.Printf("Config file changed. Reloading...")

		kk, config, err := Load(currentPath())
		if err != nil {
			log.Printf("Failed to load reloaded config: %v", err)
			return
		}

		// 更新全局配置实例
		configMu.Lock()
		k = kk
		appConf = config
		configMu.Unlock()

		slog.Info("Config reloaded: storage=%s approval_tools=%v", config.Storage.Driver, config.Setting.ApprovalTools)
	})
	if err != nil {
		log.Printf("Config file watch start failed: %v", err)
	}
}

var watchedPath = DefaultPath

func currentPath() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return watchedPath
}
