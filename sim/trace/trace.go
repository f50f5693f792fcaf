package trace

import (
	"fmt"
	"sync"
)

// TraceLevel controls how much of a session is recorded.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelCommands records UI commands only.
	TraceLevelCommands TraceLevel = "commands"
	// TraceLevelTicks records UI commands and every tick.
	TraceLevelTicks TraceLevel = "ticks"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelCommands: true,
	TraceLevelTicks:    true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// DefaultCapacity bounds each record slice when TraceConfig.Capacity is zero.
const DefaultCapacity = 10000

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level    TraceLevel
	Capacity int // most recent records kept per kind; 0 means DefaultCapacity
}

// Validate checks the level and capacity.
func (c TraceConfig) Validate() error {
	if !IsValidTraceLevel(string(c.Level)) {
		return fmt.Errorf("unknown trace level %q; valid: none, commands, ticks", c.Level)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("trace capacity must be non-negative, got %d", c.Capacity)
	}
	return nil
}

// SessionTrace collects tick and command records. It is safe for
// concurrent use by the tick loop and the feed.
type SessionTrace struct {
	Config TraceConfig

	mu       sync.Mutex
	ticks    ring[TickRecord]
	commands ring[CommandRecord]
	dropped  int
}

// NewSessionTrace creates a SessionTrace ready for recording.
func NewSessionTrace(config TraceConfig) *SessionTrace {
	if config.Level == "" {
		config.Level = TraceLevelNone
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	return &SessionTrace{
		Config:   config,
		ticks:    newRing[TickRecord](config.Capacity),
		commands: newRing[CommandRecord](config.Capacity),
	}
}

// RecordTick appends a tick record when the level is ticks.
func (st *SessionTrace) RecordTick(r TickRecord) {
	if st == nil || st.Config.Level != TraceLevelTicks {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.ticks.push(r) {
		st.dropped++
	}
}

// RecordCommand appends a command record unless tracing is off.
func (st *SessionTrace) RecordCommand(r CommandRecord) {
	if st == nil || st.Config.Level == TraceLevelNone {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.commands.push(r) {
		st.dropped++
	}
}

// Ticks returns a copy of the retained tick records, oldest first.
func (st *SessionTrace) Ticks() []TickRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ticks.items()
}

// Commands returns a copy of the retained command records, oldest first.
func (st *SessionTrace) Commands() []CommandRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.commands.items()
}

// Dropped returns how many records were evicted to stay within capacity.
func (st *SessionTrace) Dropped() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dropped
}

// ring keeps the most recent records, up to size, in a buffer that grows
// on demand and then wraps.
type ring[T any] struct {
	buf  []T
	size int
	head int // index of the oldest record once full
}

func newRing[T any](size int) ring[T] {
	return ring[T]{size: size}
}

// push stores v, overwriting the oldest record when full. Reports whether a
// record was evicted.
func (r *ring[T]) push(v T) bool {
	if len(r.buf) < r.size {
		r.buf = append(r.buf, v)
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.size
	return true
}

// items copies the records out, oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	return append(out, r.buf[:r.head]...)
}
