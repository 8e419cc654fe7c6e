package llm

import (
	"context"
	"errors"
	"sync"

	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Fake 按顺序返回预设回复的模型，用于测试和离线运行
type Fake struct {
	mu        sync.Mutex
	replies   []*schema.Message
	errs      []error
	calls     [][]*schema.Message
	boundSets [][]*schema.ToolInfo
}

// NewFake 创建假模型
func NewFake(replies ...*schema.Message) *Fake {
	return &Fake{replies: replies}
}

// FailWith 下一次调用返回 err
func (f *Fake) FailWith(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
	return f
}

// Reply 追加预设回复
func (f *Fake) Reply(msgs ...*schema.Message) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, msgs...)
	return f
}

// Generate 实现 BaseChatModel
func (f *Fake) Generate(ctx context.Context, input []*schema.Message, opts ...ecmodel.Option) (*schema.Message, error) {
	return f.generate(input, nil)
}

func (f *Fake) generate(input []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, input)
	f.boundSets = append(f.boundSets, tools)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("fake model: no reply left")
	}
	msg := f.replies[0]
	f.replies = f.replies[1:]
	return msg, nil
}

// Stream 实现 BaseChatModel
func (f *Fake) Stream(ctx context.Context, input []*schema.Message, opts ...ecmodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 实现 ToolCallingChatModel，返回共享调用记录的新实例
func (f *Fake) WithTools(tools []*schema.ToolInfo) (ecmodel.ToolCallingChatModel, error) {
	return &boundFake{Fake: f, tools: tools}, nil
}

// Calls 返回每次调用的输入
func (f *Fake) Calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.Message(nil), f.calls...)
}

// BoundTools 返回每次调用时绑定的工具
func (f *Fake) BoundTools() [][]*schema.ToolInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.ToolInfo(nil), f.boundSets...)
}

type boundFake struct {
	*Fake
	tools []*schema.ToolInfo
}

func (b *boundFake) Generate(ctx context.Context, input []*schema.Message, opts ...ecmodel.Option) (*schema.Message, error) {
	return b.Fake.generate(input, b.tools)
}

func (b *boundFake) Stream(ctx context.Context, input []*schema.Message, opts ...ecmodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := b.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// NewFakeSelector 全部模型使用同一个假模型
func NewFakeSelector(f *Fake) *Selector {
	return &Selector{Fast: f, Capable: f, Classifier: f, Summarizer: f, Drafter: f}
}
