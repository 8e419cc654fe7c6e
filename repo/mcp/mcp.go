package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

const initTimeout = 30 * time.Second

// Manager 持有全部已初始化的 MCP 客户端
type Manager struct {
	clients map[string]client.MCPClient
}

// Connect 按配置创建并初始化 MCP 客户端，任一失败时关闭已创建的客户端
func Connect(ctx context.Context, servers map[string]conf.MCPServerConfig) (*Manager, error) {
	m := &Manager{clients: make(map[string]client.MCPClient)}

	for name, server := range servers {
		mcpClient, err := newClient(ctx, name, server)
		if err != nil {
			m.Close()
			slog.Error("Connect failed, name = %+v, err = %+v", name, err)
			return nil, fmt.Errorf("failed to create MCP client for %s: %w", name, err)
		}
		if err := m.Add(ctx, name, mcpClient); err != nil {
			_ = mcpClient.Close()
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

func newClient(ctx context.Context, name string, server conf.MCPServerConfig) (client.MCPClient, error) {
	slog.Debug("newClient debug, load mcp client = %+v, mcp type = %+v", name, transportOf(server))

	if transportOf(server) == transportSSE {
		var options []transport.ClientOption
		if len(server.Headers) > 0 {
			options = append(options, transport.WithHeaders(parseHeaders(server.Headers)))
		}
		c, err := client.NewSSEMCPClient(server.URL, options...)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}

	var env []string
	for k, v := range server.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	c, err := client.NewStdioMCPClient(server.Command, env, server.Args...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Add 初始化并登记一个客户端
func (m *Manager) Add(ctx context.Context, name string, mcpClient client.MCPClient) error {
	ctx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	initRequest := mcpgo.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcpgo.Implementation{
		Name:    "harvey",
		Version: "0.1.0",
	}
	initRequest.Params.Capabilities = mcpgo.ClientCapabilities{}

	if _, err := mcpClient.Initialize(ctx, initRequest); err != nil {
		slog.Error("Add failed, initialize mcp server, name = %+v, err = %+v", name, err)
		return fmt.Errorf("failed to initialize MCP client for %s: %w", name, err)
	}
	m.clients[name] = mcpClient
	return nil
}

// Tools 列出全部服务的工具，单个服务失败时跳过
func (m *Manager) Tools(ctx context.Context) []*Tool {
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []*Tool
	for _, serverName := range names {
		mcpClient := m.clients[serverName]
		toolsResp, err := mcpClient.ListTools(ctx, mcpgo.ListToolsRequest{})
		if err != nil {
			slog.Error("Tools failed, list tools from %s, err = %v", serverName, err)
			continue
		}
		slog.Debug("Tools debug, found %d tools from %s", len(toolsResp.Tools), serverName)

		for _, t := range toolsResp.Tools {
			all = append(all, &Tool{
				Server:      serverName,
				cli:         mcpClient,
				toolName:    t.Name,
				toolDesc:    t.Description,
				inputSchema: t.InputSchema,
			})
		}
	}
	return all
}

// Close 关闭全部客户端
func (m *Manager) Close() {
	if m == nil {
		return
	}
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			slog.Error("Close failed, mcp client = %s, err = %v", name, err)
		}
	}
	m.clients = map[string]client.MCPClient{}
}
