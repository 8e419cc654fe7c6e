package model

import (
	"errors"
	"fmt"
)

// ErrorKind 节点失败的类别，决定降级方式
type ErrorKind string

const (
	KindClassification ErrorKind = "classification" // 路由分类失败，降级为闲聊
	KindSummarization  ErrorKind = "summarization"  // 摘要失败，本轮不更新上下文
	KindReasoning      ErrorKind = "reasoning"      // 推理失败，提示用户重试
	KindTool           ErrorKind = "tool"           // 工具失败，给出具体原因
	KindRateLimit      ErrorKind = "rate_limit"     // 限流，进入冷却
	KindInternal       ErrorKind = "internal"       // 节点内部异常
)

// NodeError 节点执行错误
type NodeError struct {
	Node   string
	Kind   ErrorKind
	Tool   string // 仅工具失败时有值
	Reason string // 可展示给用户的原因，仅工具失败时使用
	Err    error
}

// Error 实现 error 接口
func (e *NodeError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("node %s (%s, tool %s): %v", e.Node, e.Kind, e.Tool, e.Err)
	}
	return fmt.Sprintf("node %s (%s): %v", e.Node, e.Kind, e.Err)
}

// Unwrap 返回原始错误
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError 创建节点错误
func NewNodeError(node string, kind ErrorKind, err error) *NodeError {
	return &NodeError{Node: node, Kind: kind, Err: err}
}

// NewToolError 创建工具错误，reason 会出现在用户可见的消息里
func NewToolError(node, tool, reason string, err error) *NodeError {
	if err == nil {
		err = errors.New(reason)
	}
	return &NodeError{Node: node, Kind: KindTool, Tool: tool, Reason: reason, Err: err}
}

// AsNodeError 把任意错误归一为节点错误，未知错误按 fallbackKind 处理
func AsNodeError(node string, fallbackKind ErrorKind, err error) *NodeError {
	var ne *NodeError
	if errors.As(err, &ne) {
		if ne.Node == "" {
			ne.Node = node
		}
		return ne
	}
	return NewNodeError(node, fallbackKind, err)
}
