package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockExpires(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return now }

	assert.False(t, s.Active("u1"))
	s.Block("u1", time.Minute)
	assert.True(t, s.Active("u1"))
	assert.False(t, s.Active("u2"))
	assert.Equal(t, time.Minute, s.Remaining("u1"))

	now = now.Add(59 * time.Second)
	assert.True(t, s.Active("u1"))

	now = now.Add(time.Second)
	assert.False(t, s.Active("u1"))
	assert.Zero(t, s.Remaining("u1"))
}
