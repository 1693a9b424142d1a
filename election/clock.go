package election

import (
	"sync"
	"time"
)

// Clock supplies the current time to every phase decision.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC()
})

// FixedClock always reports the last time it was set to.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
