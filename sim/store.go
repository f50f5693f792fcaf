package sim

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Store owns the authoritative board state.
//
// Writers: the tick loop is the only writer of entity distortion, elapsed
// time, AggregateDistortion and AccumulatedTime; command methods (Add, Move,
// Entangle, Reset, replace) take the same mutex so a tick never observes a
// half-applied command. ExternalDistortion lives in an atomic cell so the
// peer receiver can publish without the mutex.
type Store struct {
	mu sync.RWMutex

	entities []*Entity
	index    map[string]*Entity
	graph    *EntanglementGraph

	startTime       time.Time
	accumulatedTime float64
	aggregate       float64

	external atomic.Uint64 // math.Float64bits
}

// NewStore creates an empty store whose start time is read from clock.
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store{
		index:     make(map[string]*Entity),
		graph:     NewEntanglementGraph(),
		startTime: clock.Now(),
	}
}

// Add appends e to the collection. Returns false if the id is already taken.
func (s *Store) Add(e *Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(e)
}

func (s *Store) addLocked(e *Entity) bool {
	if e == nil || e.ID == "" {
		return false
	}
	if _, exists := s.index[e.ID]; exists {
		return false
	}
	s.entities = append(s.entities, e)
	s.index[e.ID] = e
	return true
}

// Move repositions an entity. Returns false for an unknown id.
func (s *Store) Move(id string, pos Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[id]
	if !ok {
		return false
	}
	e.Position = pos
	return true
}

// Entangle records an unordered pair. It fails without mutation when the
// ids are equal, either id is unknown, or the pair already exists.
func (s *Store) Entangle(id1, id2 string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id1 == id2 {
		return false
	}
	if s.index[id1] == nil || s.index[id2] == nil {
		return false
	}
	return s.graph.add(id1, id2)
}

// Pairs resolves the entanglement graph to live entity views, silently
// skipping pairs whose referent is gone.
func (s *Store) Pairs() [][2]EntityView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resolved := s.graph.resolve(s.lookupLocked)
	out := make([][2]EntityView, len(resolved))
	for i, p := range resolved {
		out[i] = [2]EntityView{viewOf(p[0]), viewOf(p[1])}
	}
	return out
}

// Lookup returns a view of the entity with the given id.
func (s *Store) Lookup(id string) (EntityView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[id]
	if !ok {
		return EntityView{}, false
	}
	return viewOf(e), true
}

func (s *Store) lookupLocked(id string) *Entity {
	return s.index[id]
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// StartTime is the wall-clock time the store was created.
func (s *Store) StartTime() time.Time {
	return s.startTime
}

// AccumulatedTime is the sum of dt over observing ticks.
func (s *Store) AccumulatedTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accumulatedTime
}

// AggregateDistortion is the last computed aggregate.
func (s *Store) AggregateDistortion() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregate
}

// ExternalDistortion returns the last value published by a peer or the host.
func (s *Store) ExternalDistortion() float64 {
	return math.Float64frombits(s.external.Load())
}

// SetExternalDistortion publishes a peer value. Non-finite values are
// ignored. Safe to call from any goroutine.
func (s *Store) SetExternalDistortion(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	s.external.Store(math.Float64bits(v))
}

// Collapse zeroes the aggregate distortion until the next tick.
func (s *Store) Collapse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregate = 0
}

// Reset clears entities and pairs and zeroes the aggregate and accumulated
// time. External distortion is left alone: it belongs to the peer receiver.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = nil
	s.index = make(map[string]*Entity)
	s.graph.clear()
	s.aggregate = 0
	s.accumulatedTime = 0
}

// replace swaps in a fully decoded board in one critical section.
func (s *Store) replace(d *Decoded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = d.Entities
	s.index = make(map[string]*Entity, len(d.Entities))
	for _, e := range d.Entities {
		s.index[e.ID] = e
	}
	s.graph = d.Graph
	s.aggregate = d.TimeDistortion
	s.accumulatedTime = d.AccumulatedTime
}
