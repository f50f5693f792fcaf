package sim

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-chronometer/qchrono/sim/internal/testutil"
)

const eps = 1e-12

func TestTick_IsolatedNeutralEntityContributesNothing(t *testing.T) {
	// GIVEN one neutral entity, midpoint draws and zero jitter
	s, en := newTestStore(fixedSource(0.5))
	addEntity(t, s, "a", "clock", 10, 10, VariantNeutral)

	// WHEN ticked
	en.Tick(s, 0.05, false, nil)

	// THEN local and aggregate distortion are zero
	assert.InDelta(t, 0, localOf(t, s, "a"), eps)
	assert.InDelta(t, 0, s.AggregateDistortion(), eps)
}

func TestTick_GravityTerm(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64 // per entity
	}{
		{"at gravity scale", 50, 0.10},
		{"half scale", 25, 0.20},
		{"just inside radius", 99.999, 0.10 / (99.999 / 50)},
		{"at radius is excluded", 100, 0},
		{"beyond radius", 250, 0},
		{"coincident clamps to minimum distance", 0, 5.0},
		{"sub-unit distance clamps", 0.25, 5.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, en := newTestStore(fixedSource(0.5))
			addEntity(t, s, "a", "a", 0, 0, VariantNeutral)
			addEntity(t, s, "b", "b", tt.distance, 0, VariantNeutral)

			en.Tick(s, 0.05, false, nil)

			testutil.AssertFloat64Equal(t, "local a", tt.want, localOf(t, s, "a"), 1e-9)
			testutil.AssertFloat64Equal(t, "local b", tt.want, localOf(t, s, "b"), 1e-9)
			testutil.AssertFloat64Equal(t, "aggregate", 2*tt.want, s.AggregateDistortion(), 1e-9)
		})
	}
}

func TestTick_GravitySumsOverNeighbours(t *testing.T) {
	// GIVEN a centre entity with two neighbours at distance 50
	s, en := newTestStore(fixedSource(0.5))
	addEntity(t, s, "c", "c", 0, 0, VariantNeutral)
	addEntity(t, s, "l", "l", -50, 0, VariantNeutral)
	addEntity(t, s, "r", "r", 50, 0, VariantNeutral)

	en.Tick(s, 0.05, false, nil)

	// THEN the centre feels both; the outer two are 100 apart and feel only the centre
	assert.InDelta(t, 0.2, localOf(t, s, "c"), 1e-9)
	assert.InDelta(t, 0.1, localOf(t, s, "l"), 1e-9)
	assert.InDelta(t, 0.1, localOf(t, s, "r"), 1e-9)
}

func TestTick_SingularityAddsFixedTerm(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"bare glyph", "\U0001F573", SingularityFactor},
		{"glyph with presentation selector", "\U0001F573\uFE0F", SingularityFactor},
		{"glyph inside a label", "deep \U0001F573 well", SingularityFactor},
		{"plain text", "hole", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, en := newTestStore(fixedSource(0.5))
			addEntity(t, s, "a", tt.text, 0, 0, VariantNeutral)

			en.Tick(s, 0.05, false, nil)

			assert.InDelta(t, tt.want, localOf(t, s, "a"), eps)
		})
	}
}

func TestTick_SuperpositionRanges(t *testing.T) {
	// GIVEN one isolated entity per variant and a real random source
	s, en := newTestStore(rand.New(rand.NewSource(7)))
	addEntity(t, s, "exp", "e", 0, 0, VariantExpanding)
	addEntity(t, s, "neu", "n", 1000, 0, VariantNeutral)
	addEntity(t, s, "con", "c", 2000, 0, VariantContracting)

	// WHEN ticked many times
	for i := 0; i < 500; i++ {
		en.Tick(s, 0.05, false, nil)

		// THEN every draw stays inside its variant's range
		exp, neu, con := localOf(t, s, "exp"), localOf(t, s, "neu"), localOf(t, s, "con")
		require.True(t, exp >= 0.001 && exp < 0.005, "expanding draw %v", exp)
		require.True(t, neu >= -0.002 && neu < 0.002, "neutral draw %v", neu)
		require.True(t, con >= -0.005 && con < -0.001, "contracting draw %v", con)
	}
}

func TestTick_SuperpositionUsesScriptedDraws(t *testing.T) {
	src := testutil.NewSequenceSource(0, 0.25, 0.75)
	s, en := newTestStore(src)
	addEntity(t, s, "exp", "e", 0, 0, VariantExpanding)
	addEntity(t, s, "neu", "n", 1000, 0, VariantNeutral)
	addEntity(t, s, "con", "c", 2000, 0, VariantContracting)

	en.Tick(s, 0.05, false, nil)

	// One draw per entity in collection order
	assert.Equal(t, 3, src.Draws())
	assert.InDelta(t, 0.001, localOf(t, s, "exp"), eps)
	assert.InDelta(t, -0.001, localOf(t, s, "neu"), eps)
	assert.InDelta(t, -0.002, localOf(t, s, "con"), eps)
}

func TestTick_JitterFollowsClock(t *testing.T) {
	// GIVEN a clock at pi/2 seconds past the epoch
	quarterTurn := math.Pi / 2 * float64(time.Second)
	clock := NewFixedClock(time.Unix(0, int64(quarterTurn)))
	s := NewStore(clock)
	en := NewEngine(fixedSource(0.5), clock)
	addEntity(t, s, "a", "a", 0, 0, VariantNeutral)

	en.Tick(s, 0.05, false, nil)

	// THEN jitter is at its positive peak
	assert.InDelta(t, JitterAmplitude, localOf(t, s, "a"), 1e-9)

	// AND it never exceeds the amplitude at other instants
	for i := 0; i < 100; i++ {
		clock.Advance(137 * time.Millisecond)
		en.Tick(s, 0.05, false, nil)
		assert.LessOrEqual(t, math.Abs(localOf(t, s, "a")), JitterAmplitude+eps)
	}
}

func TestTick_EntangledPairSharesMean(t *testing.T) {
	// GIVEN A near C (each 0.1) and B isolated (0)
	s, en := newTestStore(fixedSource(0.5))
	addEntity(t, s, "A", "a", 0, 0, VariantNeutral)
	addEntity(t, s, "B", "b", 1000, 0, VariantNeutral)
	addEntity(t, s, "C", "c", 50, 0, VariantNeutral)

	// WHEN A and B are entangled
	require.True(t, s.Entangle("A", "B"))
	en.Tick(s, 0.05, false, nil)

	// THEN A and B carry equal values, the mean of their pre-fold values
	assert.InDelta(t, 0.05, localOf(t, s, "A"), 1e-9)
	assert.InDelta(t, 0.05, localOf(t, s, "B"), 1e-9)
	assert.InDelta(t, 0.1, localOf(t, s, "C"), 1e-9)
	// AND the fold preserves the sum
	assert.InDelta(t, 0.2, s.AggregateDistortion(), 1e-9)
}

func TestTick_EntanglementFoldsInDeclarationOrder(t *testing.T) {
	// GIVEN pairs (A,B) then (B,C) with A=0.1, B=0, C=0.1 before folding
	s, en := newTestStore(fixedSource(0.5))
	addEntity(t, s, "A", "a", 0, 0, VariantNeutral)
	addEntity(t, s, "D", "d", 50, 0, VariantNeutral) // pulls A
	addEntity(t, s, "B", "b", 1000, 0, VariantNeutral)
	addEntity(t, s, "C", "c", 2000, 0, VariantNeutral)
	addEntity(t, s, "E", "e", 2050, 0, VariantNeutral) // pulls C
	require.True(t, s.Entangle("A", "B"))
	require.True(t, s.Entangle("B", "C"))

	en.Tick(s, 0.05, false, nil)

	// THEN the second pair sees B's folded value: A=B=0.05, then B=C=0.075
	assert.InDelta(t, 0.05, localOf(t, s, "A"), 1e-9)
	assert.InDelta(t, 0.075, localOf(t, s, "B"), 1e-9)
	assert.InDelta(t, 0.075, localOf(t, s, "C"), 1e-9)
}

func TestTick_EmptyBoardAggregateIsExternal(t *testing.T) {
	s, en := newTestStore(fixedSource(0.5))
	s.SetExternalDistortion(0.42)

	en.Tick(s, 0.05, true, &Point{X: 1, Y: 1})

	assert.InDelta(t, 0.42, s.AggregateDistortion(), eps)
	assert.InDelta(t, 0.05, s.AccumulatedTime(), eps)
}

func TestTick_ExternalDistortionAddsToAggregate(t *testing.T) {
	s, en := newTestStore(fixedSource(0.5))
	addEntity(t, s, "a", "a", 0, 0, VariantNeutral)
	addEntity(t, s, "b", "b", 50, 0, VariantNeutral)
	s.SetExternalDistortion(-1.5)

	en.Tick(s, 0.05, false, nil)

	assert.InDelta(t, 0.2-1.5, s.AggregateDistortion(), 1e-9)
}

func TestTick_ObservationAdvancesTime(t *testing.T) {
	tests := []struct {
		name        string
		observing   bool
		probe       *Point
		wantElapsed float64
		wantAccum   float64
	}{
		{"not observing", false, &Point{X: 0, Y: 0}, 0, 0},
		{"observing without probe runs at base flow", true, nil, 0.05, 0.1},
		{"probe on the entity doubles flow", true, &Point{X: 0, Y: 0}, 0.1, 0.1},
		{"probe at half range", true, &Point{X: 150, Y: 0}, 0.075, 0.1},
		{"probe beyond range", true, &Point{X: 900, Y: 0}, 0.05, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, en := newTestStore(fixedSource(0.5))
			addEntity(t, s, "a", "a", 0, 0, VariantNeutral)

			en.Tick(s, 0.1, tt.observing, tt.probe)

			v, _ := s.Lookup("a")
			assert.InDelta(t, tt.wantElapsed, v.ElapsedTime, 1e-9)
			assert.InDelta(t, tt.wantAccum, s.AccumulatedTime(), 1e-9)
		})
	}
}

func TestTick_InvalidDTIsIgnored(t *testing.T) {
	for _, dt := range []float64{-1, math.NaN(), math.Inf(1)} {
		s, en := newTestStore(fixedSource(0.5))
		addEntity(t, s, "a", "a", 0, 0, VariantNeutral)

		en.Tick(s, dt, true, nil)

		v, _ := s.Lookup("a")
		assert.Zero(t, v.ElapsedTime, "dt=%v", dt)
		assert.Zero(t, s.AccumulatedTime(), "dt=%v", dt)
	}
}

func TestTick_ElapsedTimeNeverDecreases(t *testing.T) {
	s, en := newTestStore(rand.New(rand.NewSource(3)))
	addEntity(t, s, "a", "a", 0, 0, VariantContracting)
	addEntity(t, s, "b", "\U0001F573", 10, 0, VariantExpanding)

	prev := 0.0
	for i := 0; i < 200; i++ {
		probe := &Point{X: float64(i), Y: 0}
		en.Tick(s, 0.05, i%3 != 0, probe)
		v, _ := s.Lookup("a")
		require.GreaterOrEqual(t, v.ElapsedTime, prev)
		prev = v.ElapsedTime
	}
}

func TestProximityIntensity(t *testing.T) {
	entities := []*Entity{
		{ID: "a", Position: Point{X: 0, Y: 0}},
		{ID: "b", Position: Point{X: 1000, Y: 0}},
	}
	tests := []struct {
		name  string
		probe *Point
		want  float64
	}{
		{"no probe", nil, 0},
		{"on top of an entity", &Point{X: 0, Y: 0}, 1},
		{"nearest entity wins", &Point{X: 990, Y: 0}, (ProbeRange - 10) / ProbeRange},
		{"at half range", &Point{X: 150, Y: 0}, 0.5},
		{"at range", &Point{X: 300, Y: 0}, 0},
		{"beyond range", &Point{X: 500, Y: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, proximityIntensity(entities, tt.probe), 1e-12)
		})
	}
	assert.Zero(t, proximityIntensity(nil, &Point{}), "empty board")
}

func TestProximityIntensity_NonIncreasingWithDistance(t *testing.T) {
	entities := []*Entity{{ID: "a"}}
	prev := math.Inf(1)
	for d := 0.0; d <= 400; d += 12.5 {
		got := proximityIntensity(entities, &Point{X: d, Y: 0})
		assert.LessOrEqual(t, got, prev, "distance %v", d)
		assert.True(t, got >= 0 && got <= 1)
		prev = got
	}
}
