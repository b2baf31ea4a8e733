package engine

import (
	"sync"
	"time"
)

// Countdown schedules at most one pending timeout callback. Starting a
// new countdown invalidates the previous one, so a stale timer can never
// fire against a newer exercise.
type Countdown struct {
	mu    sync.Mutex
	seq   int
	timer *time.Timer
}

// NewCountdown returns an inactive countdown.
func NewCountdown() *Countdown {
	return &Countdown{}
}

// Start cancels any pending countdown and schedules fire after d.
// The callback runs on a timer goroutine; it is suppressed if Cancel or
// another Start happens first, even when the race is lost.
func (c *Countdown) Start(d time.Duration, fire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		live := c.seq == seq
		c.mu.Unlock()
		if live {
			fire()
		}
	})
}

// Cancel invalidates the pending countdown, if any.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.seq++
}
