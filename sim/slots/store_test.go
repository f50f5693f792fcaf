package slots

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-chronometer/qchrono/sim"
	"github.com/quantum-chronometer/qchrono/sim/internal/testutil"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	// GIVEN a board with two units and a pair
	chrono := sim.NewChronometer(sim.NewChronometerConfig(3))
	a := chrono.Spawn("a", sim.Point{X: 1, Y: 2})
	b := chrono.Spawn("b", sim.Point{X: 3, Y: 4})
	require.True(t, chrono.Entangle(a, b))
	s := openMemory(t)
	ctx := context.Background()

	// WHEN saved to a slot and loaded back
	require.NoError(t, s.Save(ctx, "quick", chrono.Save()))
	data, err := s.Load(ctx, "quick")
	require.NoError(t, err)

	// THEN the document restores the same board
	restored := sim.NewChronometer(sim.NewChronometerConfig(3))
	require.NoError(t, restored.Load(data))
	snap := restored.Snapshot()
	require.Len(t, snap.Entities, 2)
	assert.Equal(t, a, snap.Entities[0].ID)
	assert.Equal(t, [][2]string{{a, b}}, snap.Entangled)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "slot", sim.Document{Units: []sim.UnitRecord{{ID: "a", Text: "a"}}}))
	require.NoError(t, s.Save(ctx, "slot", sim.Document{}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Entities)
}

func TestStore_ListOrderedByName(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.Save(ctx, name, sim.Document{}))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)

	names := make([]string, len(list))
	for i, sl := range list {
		names[i] = sl.Name
		assert.Positive(t, sl.Size)
		assert.False(t, sl.SavedAt.IsZero())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestStore_MissingSlot(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "gone", sim.Document{}))

	require.NoError(t, s.Delete(ctx, " gone "))

	_, err := s.Load(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ImportValidates(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Import(ctx, "fixture", testutil.LoadFixture(t, "board.json")))
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Entities)

	err = s.Import(ctx, "broken", []byte(`{"units":[{"text":1,"x":0,"y":0}]}`))
	assert.ErrorIs(t, err, sim.ErrDecode)
	_, err = s.Load(ctx, "broken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EmptyNameRejected(t *testing.T) {
	s := openMemory(t)
	assert.Error(t, s.Save(context.Background(), "  ", sim.Document{}))
}

func TestOpen_FileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slots.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "kept", sim.Document{}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	_, err = reopened.Load(ctx, "kept")
	assert.NoError(t, err)
	assert.Equal(t, path, reopened.Path())
}
