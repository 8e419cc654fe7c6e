package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/template"
)

// Summarizer 上下文摘要节点，消息过多时压缩为结构化上下文并裁剪历史
type Summarizer struct {
	model     ecmodel.BaseChatModel
	prompts   *template.Loader
	window    int
	threshold int
	keep      int
	maxLimit  int
}

// New 创建摘要节点
func New(m ecmodel.BaseChatModel, prompts *template.Loader, setting conf.SettingConfig) *Summarizer {
	return &Summarizer{
		model:     m,
		prompts:   prompts,
		window:    setting.SummaryWindow,
		threshold: setting.SummaryThreshold,
		keep:      setting.SummaryKeep,
		maxLimit:  setting.MaxLimitToken,
	}
}

// Name 节点名
func (s *Summarizer) Name() string {
	return consts.Summarizer
}

// Run 按需摘要，本轮到此结束
func (s *Summarizer) Run(ctx context.Context, state *model.State) (*model.Update, error) {
	u := model.NewUpdate()
	if !state.RequiresApproval {
		u.With(model.ClearPending())
	}
	if !s.triggered(state) {
		return u.Decide("summarized", false), nil
	}

	summary, err := s.summarize(ctx, state)
	if err != nil {
		return nil, err
	}
	slog.Info("Summarizer, goal = %q, topic = %q, topic_shift = %v, pruned to %d",
		summary.CurrentGoal, summary.LastActiveTopic, summary.TopicShift, s.keep)
	return u.With(
		model.ReplaceContext(summary.Context()),
		model.PruneMessages(s.keep),
	).Decide("summarized", true).Decide("topic_shift", summary.TopicShift), nil
}

// triggered 最近一条非助手消息来自用户，且消息数达到阈值
func (s *Summarizer) triggered(state *model.State) bool {
	if s.threshold <= 0 || len(state.Messages) < s.threshold {
		return false
	}
	// 工具流程中不摘要
	if last := state.LastMessage(); last != nil && last.Role == schema.Tool {
		return false
	}
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m == nil || m.Role == schema.Assistant || m.Role == schema.Tool {
			continue
		}
		return m.Role == schema.User
	}
	return false
}

func (s *Summarizer) summarize(ctx context.Context, state *model.State) (*model.Summary, error) {
	window := comm.ForModel(ctx, state.Messages, s.window, s.maxLimit)
	lines := make([]string, 0, len(window))
	for _, m := range window {
		if m.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	msgs, err := s.prompts.Format(ctx, template.Summarizer, map[string]any{
		"history": strings.Join(lines, "\n"),
	}, nil)
	if err != nil {
		return nil, model.NewNodeError(consts.Summarizer, model.KindSummarization, err)
	}

	start := time.Now()
	resp, err := s.model.Generate(ctx, msgs)
	if err != nil {
		slog.Error("Summarizer failed, generate, err = %v", err)
		return nil, model.NewNodeError(consts.Summarizer, model.KindSummarization, err)
	}
	comm.LogUsage("Summarizer", resp)

	var out model.Summary
	if err := comm.ExtractJSON(resp.Content, &out); err != nil {
		return nil, model.NewNodeError(consts.Summarizer, model.KindSummarization, fmt.Errorf("parse summary: %w", err))
	}
	slog.Debug("Summarizer, cost = %v", time.Since(start))
	return &out, nil
}
