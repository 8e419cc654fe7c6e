package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/model"
)

// Store 会话状态存储，按会话ID索引。
// 记录整体替换，不做原地修改，写入失败时上一次提交的状态保持不变
type Store interface {
	// Load 读取会话状态，不存在时返回 false
	Load(ctx context.Context, conversationID string) (*model.State, bool, error)
	// Save 整体替换会话状态
	Save(ctx context.Context, conversationID string, state *model.State) error
	// AppendHistory 追加完整转录，不随摘要裁剪
	AppendHistory(ctx context.Context, conversationID string, entries ...model.HistoryEntry) error
	// History 读取最近 limit 条转录，limit <= 0 表示全部
	History(ctx context.Context, conversationID string, limit int) ([]model.HistoryEntry, error)
	Close() error
}

// New 按配置创建存储
func New(cfg conf.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "bolt":
		s, err := OpenBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// checkpoint 内存存储，保存编码后的字节，读写互不共享对象
type checkpoint struct {
	mu      sync.RWMutex
	buf     map[string][]byte // map映射存储
	history map[string][]model.HistoryEntry
}

// NewMemory 创建内存存储
func NewMemory() Store {
	return &checkpoint{
		buf:     make(map[string][]byte),
		history: make(map[string][]model.HistoryEntry),
	}
}

func (c *checkpoint) Get(ctx context.Context, checkPointID string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.buf[checkPointID]
	return data, ok, nil
}

func (c *checkpoint) Set(ctx context.Context, checkPointID string, checkPoint []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[checkPointID] = checkPoint
	return nil
}

func (c *checkpoint) Load(ctx context.Context, conversationID string) (*model.State, bool, error) {
	data, ok, err := c.Get(ctx, conversationID)
	if err != nil || !ok {
		return nil, false, err
	}
	state, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (c *checkpoint) Save(ctx context.Context, conversationID string, state *model.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	return c.Set(ctx, conversationID, data)
}

func (c *checkpoint) AppendHistory(ctx context.Context, conversationID string, entries ...model.HistoryEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[conversationID] = append(c.history[conversationID], entries...)
	return nil
}

func (c *checkpoint) History(ctx context.Context, conversationID string, limit int) ([]model.HistoryEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := c.history[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.HistoryEntry(nil), all...), nil
}

func (c *checkpoint) Close() error {
	return nil
}
