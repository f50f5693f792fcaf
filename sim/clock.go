package sim

import (
	"math"
	"sync"
	"time"
)

// Clock supplies wall-clock readings to the engine and the store.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock is a controllable clock for tests and replays.
type FixedClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// JitterAmplitude bounds the flicker term.
const JitterAmplitude = 0.001

// jitter is the cosmetic flicker, sin(unix seconds) scaled into
// [-JitterAmplitude, JitterAmplitude].
func jitter(now time.Time) float64 {
	secs := float64(now.UnixNano()) / float64(time.Second)
	return math.Sin(secs) * JitterAmplitude
}
