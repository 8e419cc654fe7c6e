package template

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// 提示词名称
const (
	Harvey     = "harvey"
	Router     = "router"
	Summarizer = "summarizer"
	Drafter    = "drafter"
)

//go:embed prompts/*.md
var embedded embed.FS

// Loader 提示词加载器，优先读取覆盖目录，缺失时使用内置模板
type Loader struct {
	Dir string
}

// NewLoader 创建加载器，dir 为空时只使用内置模板
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Get 加载并返回一个提示模板
func (l *Loader) Get(ctx context.Context, promptName string) (string, error) {
	name := fmt.Sprintf("%s.md", promptName)

	if l != nil && l.Dir != "" {
		content, err := os.ReadFile(filepath.Join(l.Dir, name))
		if err == nil {
			return string(content), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			msg := fmt.Errorf("Get failed, read template file, err: %w", err)
			slog.Error(msg.Error())
			return "", msg
		}
	}

	content, err := embedded.ReadFile("prompts/" + name)
	if err != nil {
		msg := fmt.Errorf("Get failed, unknown template %s, err: %w", promptName, err)
		slog.Error(msg.Error())
		return "", msg
	}
	return string(content), nil
}

// Format 把模板渲染为系统消息，历史消息接在其后
func (l *Loader) Format(ctx context.Context, promptName string, vars map[string]any, history []*schema.Message) ([]*schema.Message, error) {
	sysPrompt, err := l.Get(ctx, promptName)
	if err != nil {
		return nil, err
	}

	// 构建Jinja2格式的提示词模板，包含系统消息和历史消息占位符
	promptTemp := prompt.FromMessages(schema.Jinja2,
		schema.SystemMessage(sysPrompt),
		schema.MessagesPlaceholder("history_messages", true),
	)

	variables := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		variables[k] = v
	}
	variables["history_messages"] = history

	output, err := promptTemp.Format(ctx, variables)
	if err != nil {
		slog.Error("Format failed, format prompt template %s fail, err = %v", promptName, err)
		return nil, fmt.Errorf("format prompt %s: %w", promptName, err)
	}
	return output, nil
}
