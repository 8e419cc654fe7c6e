package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/mcp"
)

// remoteCaller MCP 远端工具
type remoteCaller interface {
	Info(ctx context.Context) (*schema.ToolInfo, error)
	Call(ctx context.Context, args map[string]any) (string, error)
}

// mcpTool 把 MCP 工具接入注册表，远端工具不感知操作者
type mcpTool struct {
	remote remoteCaller
}

// FromMCP 包装 MCP 工具
func FromMCP(list []*mcp.Tool) []Tool {
	out := make([]Tool, 0, len(list))
	for _, t := range list {
		out = append(out, &mcpTool{remote: t})
	}
	return out
}

// Info 实现 Tool
func (t *mcpTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.remote.Info(ctx)
}

// Invoke 实现 Tool
func (t *mcpTool) Invoke(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
	text, err := t.remote.Call(ctx, args)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = "Done."
	}
	return &Result{OK: true, Message: text}, nil
}
