package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// Chronometer is the command surface a board UI drives: spawn, move,
// entangle, tick, snapshot, save, load and reset. All methods are safe for
// concurrent use; Tick is expected to be called from one goroutine.
type Chronometer struct {
	store    *Store
	engine   *Engine
	variants Source
}

// NewChronometer builds an empty board.
func NewChronometer(cfg ChronometerConfig) *Chronometer {
	cfg = cfg.resolve()
	return &Chronometer{
		store:    NewStore(cfg.Clock),
		engine:   NewEngine(cfg.Superposition, cfg.Clock),
		variants: cfg.Variants,
	}
}

// Store exposes the underlying state for read-side helpers.
func (c *Chronometer) Store() *Store {
	return c.store
}

// Spawn places a new entity with a random variant and returns its id.
// Returns "" if text is blank or pos is not finite.
func (c *Chronometer) Spawn(text string, pos Point) string {
	if strings.TrimSpace(text) == "" {
		logrus.Debug("spawn rejected: blank text")
		return ""
	}
	if !finitePoint(pos) {
		logrus.Debugf("spawn rejected: non-finite position %v", pos)
		return ""
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	// variants is only touched under the store lock.
	e := NewEntity(text, pos, randomVariant(c.variants))
	c.store.addLocked(e)
	logrus.Debugf("spawned %s", e)
	return e.ID
}

// Move repositions an entity. Unknown ids and non-finite positions fail.
func (c *Chronometer) Move(id string, pos Point) bool {
	if !finitePoint(pos) {
		return false
	}
	return c.store.Move(id, pos)
}

// Entangle pairs two live entities.
func (c *Chronometer) Entangle(id1, id2 string) bool {
	return c.store.Entangle(id1, id2)
}

// Tick runs one engine step.
func (c *Chronometer) Tick(dt float64, observing bool, probe *Point) {
	c.engine.Tick(c.store, dt, observing, probe)
}

// Snapshot returns a read-only view of the board.
func (c *Chronometer) Snapshot() Snapshot {
	return c.store.Snapshot()
}

// ProximityPairs lists entity pairs closer than threshold.
func (c *Chronometer) ProximityPairs(threshold float64) [][2]EntityView {
	return c.store.ProximityPairs(threshold)
}

// SetExternalDistortion publishes a value received from a peer.
func (c *Chronometer) SetExternalDistortion(v float64) {
	c.store.SetExternalDistortion(v)
}

// Collapse zeroes the aggregate until the next tick.
func (c *Chronometer) Collapse() {
	c.store.Collapse()
}

// Save encodes the board with the store's accumulated observed time.
func (c *Chronometer) Save() Document {
	return Encode(c.store, c.store.AccumulatedTime())
}

// Load replaces the board from raw document JSON. On error the board is
// left untouched.
func (c *Chronometer) Load(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return fmt.Errorf("loading board: %w", err)
	}
	c.store.replace(d)
	logrus.Infof("loaded board: %d entities, %d entangled pairs", len(d.Entities), d.Graph.Len())
	return nil
}

// LoadDocument replaces the board from an in-memory document.
func (c *Chronometer) LoadDocument(doc Document) error {
	d, err := DecodeDocument(doc)
	if err != nil {
		return fmt.Errorf("loading board: %w", err)
	}
	c.store.replace(d)
	return nil
}

// Reset clears the board.
func (c *Chronometer) Reset() {
	c.store.Reset()
	logrus.Info("board reset")
}

func finitePoint(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
