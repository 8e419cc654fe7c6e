package llm

import (
	"context"
	"fmt"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino-ext/components/model/openai"
	openai3 "github.com/cloudwego/eino-ext/libs/acl/openai"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/model"
)

// NewChatModel 创建支持工具调用的 Chat 模型
func NewChatModel(ctx context.Context, m conf.Model) (ecmodel.ToolCallingChatModel, error) {
	llm, err := openai.NewChatModel(ctx, chatModelConfig(m))
	if err != nil {
		slog.Error("NewChatModel failed, model = %s, err: %v", m.ModelID, err)
		return nil, fmt.Errorf("new chat model %s: %w", m.ModelID, err)
	}
	return llm, nil
}

// NewStructuredModel 创建按 JSON Schema 输出的模型，schema 由 v 的类型生成
func NewStructuredModel(ctx context.Context, m conf.Model, name string, v any) (ecmodel.BaseChatModel, error) {
	// 定义返回结构
	ref, err := openapi3gen.NewSchemaRefForValue(v, nil)
	if err != nil {
		return nil, fmt.Errorf("generate %s schema: %w", name, err)
	}

	cfg := chatModelConfig(m)
	cfg.ResponseFormat = &openai3.ChatCompletionResponseFormat{
		Type: openai3.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai3.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Strict: false,
			Schema: ref.Value,
		},
	}

	llm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		slog.Error("NewStructuredModel failed, name = %s, err: %v", name, err)
		return nil, fmt.Errorf("new structured model %s: %w", name, err)
	}
	return llm, nil
}

func chatModelConfig(m conf.Model) *openai.ChatModelConfig {
	cfg := &openai.ChatModelConfig{
		Model:   m.ModelID,
		BaseURL: m.BaseURL,
		APIKey:  m.APIKey,
		Timeout: m.Timeout,
	}
	if m.Temperature > 0 {
		t := m.Temperature
		cfg.Temperature = &t
	}
	return cfg
}

// NewSelector 按配置创建全部模型
func NewSelector(ctx context.Context, cfg conf.ModelConfig) (*Selector, error) {
	fast, err := NewChatModel(ctx, cfg.Fast)
	if err != nil {
		return nil, err
	}
	capable, err := NewChatModel(ctx, cfg.Capable)
	if err != nil {
		return nil, err
	}
	classifier, err := NewStructuredModel(ctx, cfg.Fast, "classification", &model.Classification{})
	if err != nil {
		return nil, err
	}
	summarizer, err := NewStructuredModel(ctx, cfg.Capable, "summary", &model.Summary{})
	if err != nil {
		return nil, err
	}
	drafter, err := NewStructuredModel(ctx, cfg.Fast, "draft", &model.Draft{})
	if err != nil {
		return nil, err
	}
	return &Selector{
		Fast:       fast,
		Capable:    capable,
		Classifier: classifier,
		Summarizer: summarizer,
		Drafter:    drafter,
	}, nil
}
