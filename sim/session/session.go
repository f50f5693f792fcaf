// Package session runs the fixed-cadence tick loop that drives a
// chronometer, shares its aggregate with peers and publishes snapshots.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantum-chronometer/qchrono/sim"
	"github.com/quantum-chronometer/qchrono/sim/telemetry"
	"github.com/quantum-chronometer/qchrono/sim/trace"
)

// Config controls tick cadence.
type Config struct {
	Interval      time.Duration // wall time between ticks
	DT            float64       // simulated seconds per tick
	ObserveWindow time.Duration // probe updates younger than this count as observing
}

// DefaultConfig ticks at 20 Hz with dt matching the interval.
func DefaultConfig() Config {
	return Config{
		Interval:      50 * time.Millisecond,
		DT:            0.05,
		ObserveWindow: 200 * time.Millisecond,
	}
}

// Validate checks the cadence.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.Interval)
	}
	if !(c.DT > 0) {
		return fmt.Errorf("tick dt must be positive, got %f", c.DT)
	}
	if c.ObserveWindow < 0 {
		return fmt.Errorf("observe window must be non-negative, got %v", c.ObserveWindow)
	}
	return nil
}

// Broadcaster shares the aggregate distortion. Implementations must not
// block.
type Broadcaster interface {
	BroadcastIfChanged(value float64) bool
}

// Publisher receives every post-tick snapshot. Implementations must not
// block.
type Publisher interface {
	Publish(snap sim.Snapshot)
}

// Deps are the optional collaborators of a session. Nil fields are skipped.
type Deps struct {
	Peers   Broadcaster
	Feed    Publisher
	Metrics *telemetry.Metrics
	Trace   *trace.SessionTrace
	Clock   sim.Clock
}

// Session owns the tick goroutine.
type Session struct {
	chrono *sim.Chronometer
	input  *Input
	config Config
	deps   Deps

	ticks   atomic.Uint64
	running atomic.Bool
}

// New creates a session around chrono.
func New(chrono *sim.Chronometer, cfg Config, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = sim.SystemClock{}
	}
	return &Session{
		chrono: chrono,
		input:  NewInput(deps.Clock),
		config: cfg,
		deps:   deps,
	}
}

// Chronometer returns the driven board.
func (s *Session) Chronometer() *sim.Chronometer {
	return s.chrono
}

// Input returns the observation input fed by the UI.
func (s *Session) Input() *Input {
	return s.input
}

// SetPublisher installs the snapshot publisher. It must be called before Run.
func (s *Session) SetPublisher(p Publisher) {
	s.deps.Feed = p
}

// Trace returns the session trace, or nil when tracing is not configured.
func (s *Session) Trace() *trace.SessionTrace {
	return s.deps.Trace
}

// Ticks returns the number of completed ticks.
func (s *Session) Ticks() uint64 {
	return s.ticks.Load()
}

// Step runs one tick: engine, broadcast, metrics, publish, trace.
func (s *Session) Step() sim.Snapshot {
	observing, probe := s.input.Observation(s.config.ObserveWindow)

	started := time.Now()
	s.chrono.Tick(s.config.DT, observing, probe)
	elapsed := time.Since(started)

	snap := s.chrono.Snapshot()
	if s.deps.Peers != nil {
		s.deps.Peers.BroadcastIfChanged(snap.AggregateDistortion)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveTick(elapsed, snap)
	}
	if s.deps.Feed != nil {
		s.deps.Feed.Publish(snap)
	}
	tick := s.ticks.Add(1)
	s.deps.Trace.RecordTick(trace.TickRecord{
		Tick:            tick,
		AccumulatedTime: snap.AccumulatedTime,
		Aggregate:       snap.AggregateDistortion,
		External:        snap.ExternalDistortion,
		Observing:       observing,
		Entities:        len(snap.Entities),
	})
	return snap
}

// Run ticks every Interval until ctx is cancelled. Returns nil on
// cancellation and an error if the session is already running.
func (s *Session) Run(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session already running")
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	logrus.Infof("session: ticking every %v (dt=%.3fs)", s.config.Interval, s.config.DT)
	for {
		select {
		case <-ctx.Done():
			logrus.Infof("session: stopped after %d ticks", s.ticks.Load())
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}
