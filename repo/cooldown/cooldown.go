package cooldown

import (
	"sync"
	"time"
)

// Store 限流冷却标记，按 key 记录到期时间
type Store struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// New 创建冷却标记存储
func New() *Store {
	return &Store{until: make(map[string]time.Time), now: time.Now}
}

// Block 设置冷却，ttl 内 Active 返回 true
func (s *Store) Block(key string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until[key] = s.now().Add(ttl)
}

// Active 判断是否处于冷却中，过期的标记顺带清理
func (s *Store) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.until[key]
	if !ok {
		return false
	}
	if !s.now().Before(t) {
		delete(s.until, key)
		return false
	}
	return true
}

// Remaining 剩余冷却时间
func (s *Store) Remaining(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.until[key]
	if !ok {
		return 0
	}
	if d := t.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}
