package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantum-chronometer/qchrono/sim/internal/testutil"
)

// fixedSource always draws the same value.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

// epoch makes the jitter term exactly zero.
var epoch = time.Unix(0, 0)

// newTestChronometer builds a board whose every spawn is neutral and whose
// superposition draws are all the midpoint of the variant range, so neutral
// entities contribute nothing but gravity and singularity terms.
func newTestChronometer(t *testing.T) *Chronometer {
	t.Helper()
	return NewChronometer(ChronometerConfig{
		Seed:          42,
		Clock:         NewFixedClock(epoch),
		Superposition: testutil.NewSequenceSource(0.5),
		Variants:      testutil.NewSequenceSource(0.5),
	})
}

// newTestStore returns an empty store and a zero-jitter engine drawing from src.
func newTestStore(src Source) (*Store, *Engine) {
	clock := NewFixedClock(epoch)
	return NewStore(clock), NewEngine(src, clock)
}

// addEntity inserts an entity with a fixed id.
func addEntity(t *testing.T, s *Store, id, text string, x, y float64, v Variant) *Entity {
	t.Helper()
	e := &Entity{ID: id, Text: text, Position: Point{X: x, Y: y}, Variant: v}
	require.True(t, s.Add(e), "adding %s", id)
	return e
}

// localOf returns the entity's last local distortion.
func localOf(t *testing.T, s *Store, id string) float64 {
	t.Helper()
	v, ok := s.Lookup(id)
	require.True(t, ok, "lookup %s", id)
	return v.LocalDistortion
}
