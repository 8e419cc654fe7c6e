package checkpoint

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hildam/harvey-go/entity/model"
	bolt "go.etcd.io/bbolt"
)

var (
	checkpointBucket = []byte("checkpoints")
	historyBucket    = []byte("history")
)

// BoltStore 基于 bbolt 的会话状态存储，转录按会话分桶
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt 打开数据库文件
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(checkpointBucket); e != nil {
			return e
		}
		_, e := tx.CreateBucketIfNotExists(historyBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Load 读取会话状态
func (s *BoltStore) Load(ctx context.Context, conversationID string) (*model.State, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(checkpointBucket).Get([]byte(conversationID)); v != nil {
			// bolt 返回的切片只在事务内有效
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}
	state, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// Save 整体替换会话状态
func (s *BoltStore) Save(ctx context.Context, conversationID string, state *model.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Put([]byte(conversationID), data)
	})
}

// AppendHistory 追加转录
func (s *BoltStore) AppendHistory(ctx context.Context, conversationID string, entries ...model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(historyBucket).CreateBucketIfNotExists([]byte(conversationID))
		if err != nil {
			return err
		}
		for _, e := range entries {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			enc, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := b.Put(seqKey(seq), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

// History 读取最近 limit 条转录，按时间正序
func (s *BoltStore) History(ctx context.Context, conversationID string, limit int) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket).Bucket([]byte(conversationID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e model.HistoryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				// 跳过损坏的记录
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close 关闭数据库
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
