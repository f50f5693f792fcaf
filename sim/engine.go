package sim

import (
	"math"
)

// Engine tuning constants.
const (
	// ProbeRange is the distance at which the probe stops speeding up time.
	ProbeRange = 300.0
	// BaseFlowFactor is the flow rate with the probe out of range.
	BaseFlowFactor = 0.5

	// GravityRadius bounds the pairwise proximity term.
	GravityRadius = DefaultProximityThreshold
	// CloseGravityFactor is the pull at GravityScale distance.
	CloseGravityFactor = 0.10
	// GravityScale normalises distance in the proximity term.
	GravityScale = 50.0
	// MinGravityDistance clamps coincident entities.
	MinGravityDistance = 1.0

	// SingularityFactor is added to every singularity's contribution.
	SingularityFactor = 0.50
)

// Engine computes per-tick distortion. It holds the randomness source for
// superposition draws and the clock for the jitter term; both are injected
// so a test can fix every term.
type Engine struct {
	src   Source
	clock Clock
}

// NewEngine creates an engine. A nil clock falls back to the system clock;
// a nil source panics on first use.
func NewEngine(src Source, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{src: src, clock: clock}
}

// Tick advances the store by one step of dt seconds. When observing is false
// no entity's elapsed time moves. probe may be nil.
func (en *Engine) Tick(s *Store, dt float64, observing bool, probe *Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		dt = 0
	}

	flow := BaseFlowFactor + (1-BaseFlowFactor)*proximityIntensity(s.entities, probe)
	now := en.clock.Now()

	for _, e := range s.entities {
		if observing {
			e.accumulate(dt * flow)
		}
		e.LocalDistortion = jitter(now) +
			gravity(e, s.entities) +
			en.superposition(e.Variant) +
			singularity(e)
	}

	// Sequential fold: a later pair sees the value an earlier pair wrote.
	for _, p := range s.graph.resolve(s.lookupLocked) {
		mean := (p[0].LocalDistortion + p[1].LocalDistortion) / 2
		p[0].LocalDistortion = mean
		p[1].LocalDistortion = mean
	}

	total := 0.0
	for _, e := range s.entities {
		total += e.LocalDistortion
	}
	s.aggregate = total + s.ExternalDistortion()

	if observing {
		s.accumulatedTime += dt
	}
}

// gravity sums the pull of every other entity inside GravityRadius.
func gravity(e *Entity, all []*Entity) float64 {
	sum := 0.0
	for _, o := range all {
		if o == e {
			continue
		}
		d := e.Position.Distance(o.Position)
		if d < GravityRadius {
			sum += proximityTerm(d)
		}
	}
	return sum
}

// proximityTerm is the pull between two entities at distance d.
func proximityTerm(d float64) float64 {
	return CloseGravityFactor / (math.Max(d, MinGravityDistance) / GravityScale)
}

func (en *Engine) superposition(v Variant) float64 {
	lo, hi := v.drawRange()
	return uniform(en.src, lo, hi)
}

func singularity(e *Entity) float64 {
	if e.IsSingularity() {
		return SingularityFactor
	}
	return 0
}
