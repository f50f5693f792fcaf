package session

import (
	"sync"
	"time"

	"github.com/quantum-chronometer/qchrono/sim"
)

// Input collects the observation state a board UI reports between ticks:
// the continuous observe toggle and the latest probe (pointer) position.
type Input struct {
	mu         sync.Mutex
	clock      sim.Clock
	continuous bool
	probe      *sim.Point
	lastProbe  time.Time
}

// NewInput creates an input that timestamps probe updates with clock.
func NewInput(clock sim.Clock) *Input {
	if clock == nil {
		clock = sim.SystemClock{}
	}
	return &Input{clock: clock}
}

// SetObserving toggles continuous observation.
func (in *Input) SetObserving(on bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.continuous = on
}

// ObserveProbe records a probe position; it counts as observation for the
// session's observe window.
func (in *Input) ObserveProbe(p sim.Point) {
	in.mu.Lock()
	defer in.mu.Unlock()
	pos := p
	in.probe = &pos
	in.lastProbe = in.clock.Now()
}

// Observation reports whether the next tick observes and where the probe is.
// A probe update within window counts as observing.
func (in *Input) Observation(window time.Duration) (bool, *sim.Point) {
	in.mu.Lock()
	defer in.mu.Unlock()
	observing := in.continuous
	if !in.lastProbe.IsZero() && in.clock.Now().Sub(in.lastProbe) < window {
		observing = true
	}
	if in.probe == nil {
		return observing, nil
	}
	pos := *in.probe
	return observing, &pos
}
