package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/hildam/harvey-go/agent"
	"github.com/hildam/harvey-go/agent/approval"
	"github.com/hildam/harvey-go/agent/executor"
	"github.com/hildam/harvey-go/agent/reasoner"
	"github.com/hildam/harvey-go/agent/router"
	"github.com/hildam/harvey-go/agent/summarizer"
	"github.com/hildam/harvey-go/agent/tools"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/repo/checkpoint"
	"github.com/hildam/harvey-go/repo/cooldown"
	"github.com/hildam/harvey-go/repo/hr"
	"github.com/hildam/harvey-go/repo/llm"
	"github.com/hildam/harvey-go/repo/mailer"
	"github.com/hildam/harvey-go/repo/mcp"
	"github.com/hildam/harvey-go/repo/template"
)

// App 组装好的对话服务及其持有的资源
type App struct {
	Service  *Service
	HR       *hr.Store
	Registry *tools.Registry

	closers []func()
}

// Close 按创建的逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Build 按配置创建模型并组装服务
func Build(ctx context.Context, cfg *conf.AppConfig) (*App, error) {
	models, err := llm.NewSelector(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("create models: %w", err)
	}
	return BuildWith(ctx, cfg, models)
}

// BuildWith 使用给定模型组装服务
func BuildWith(ctx context.Context, cfg *conf.AppConfig, models *llm.Selector) (*App, error) {
	app := &App{}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	store, err := hr.Open(cfg.HR.DBPath)
	if err != nil {
		return fail(fmt.Errorf("open hr store: %w", err))
	}
	app.HR = store
	app.closers = append(app.closers, func() { _ = store.Close() })

	if cfg.HR.PolicyDir != "" {
		n, err := store.ImportPolicyDir(ctx, cfg.HR.OrgID, cfg.HR.PolicyDir)
		if err != nil {
			return fail(fmt.Errorf("import policies: %w", err))
		}
		slog.Info("BuildWith, imported %d policy sections from %s", n, cfg.HR.PolicyDir)
	}

	sender, err := mailer.New(cfg.Mail)
	if err != nil {
		return fail(fmt.Errorf("create mailer: %w", err))
	}

	loc, err := time.LoadLocation(cfg.Setting.Timezone)
	if err != nil {
		loc = time.UTC
	}
	list := tools.Builtins(&tools.Deps{
		HR:       store,
		Mailer:   sender,
		Mail:     cfg.Mail,
		LinkBase: cfg.HR.LinkBase,
		Location: loc,
	})

	if len(cfg.MCP.Servers) > 0 {
		manager, err := mcp.Connect(ctx, cfg.MCP.Servers)
		if err != nil {
			return fail(err)
		}
		app.closers = append(app.closers, manager.Close)
		list = append(list, tools.FromMCP(manager.Tools(ctx))...)
	}

	registry, err := tools.NewRegistry(ctx, list...)
	if err != nil {
		return fail(fmt.Errorf("build tool registry: %w", err))
	}
	app.Registry = registry

	setting := cfg.Setting
	prompts := template.NewLoader(setting.PromptDir)
	policy := approval.NewPolicy(setting.ApprovalTools)
	graph, err := agent.New(ctx, setting,
		router.New(models.Classifier, registry, prompts, setting.RouterWindow, setting.MaxLimitToken),
		reasoner.New(models, registry, prompts, policy, setting),
		executor.New(registry, setting.ToolTimeout),
		summarizer.New(models.Summarizer, prompts, setting),
	)
	if err != nil {
		return fail(fmt.Errorf("build graph: %w", err))
	}

	checkpoints, err := checkpoint.New(cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open checkpoint store: %w", err))
	}
	app.closers = append(app.closers, func() { _ = checkpoints.Close() })

	app.Service = NewService(graph, checkpoints, cooldown.New(), setting)
	slog.Info("BuildWith, tools = %v, approval = %v, storage = %s", registry.Names(), policy.Tools(), cfg.Storage.Driver)
	return app, nil
}
