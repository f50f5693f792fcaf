package sim

import "time"

// EntityView is a read-only copy of one entity at snapshot time.
type EntityView struct {
	ID              string  `json:"id"`
	Text            string  `json:"text"`
	Position        Point   `json:"position"`
	Variant         Variant `json:"superposition_symbol"`
	Singularity     bool    `json:"singularity"`
	GlyphCount      int     `json:"glyph_count"`
	DisplayWidth    int     `json:"display_width"`
	ElapsedTime     float64 `json:"elapsed_time"`
	LocalDistortion float64 `json:"local_distortion"`
	LocalTime       float64 `json:"local_time"`
	LocalClock      string  `json:"local_clock"`
}

func viewOf(e *Entity) EntityView {
	return EntityView{
		ID:              e.ID,
		Text:            e.Text,
		Position:        e.Position,
		Variant:         e.Variant,
		Singularity:     e.IsSingularity(),
		GlyphCount:      e.GlyphCount(),
		DisplayWidth:    e.DisplayWidth(),
		ElapsedTime:     e.ElapsedTime,
		LocalDistortion: e.LocalDistortion,
		LocalTime:       e.LocalTime(),
		LocalClock:      FormatLocalClock(e.LocalTime()),
	}
}

// Snapshot is a consistent read-only view of the board.
type Snapshot struct {
	Entities            []EntityView `json:"entities"`
	Entangled           [][2]string  `json:"entangled"`
	ProximityPairs      [][2]string  `json:"proximity_pairs"`
	AggregateDistortion float64      `json:"aggregate_distortion"`
	ExternalDistortion  float64      `json:"external_distortion"`
	AccumulatedTime     float64      `json:"accumulated_time"`
	MagnifiedTime       float64      `json:"magnified_time"`
	Clock               string       `json:"clock"`
	Marker              Variant      `json:"marker"`
	StartTime           time.Time    `json:"start_time"`
}

// Snapshot copies the board under a read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Entities:            make([]EntityView, len(s.entities)),
		Entangled:           make([][2]string, 0, s.graph.Len()),
		ProximityPairs:      make([][2]string, 0),
		AggregateDistortion: s.aggregate,
		ExternalDistortion:  s.ExternalDistortion(),
		AccumulatedTime:     s.accumulatedTime,
		StartTime:           s.startTime,
	}
	for i, e := range s.entities {
		snap.Entities[i] = viewOf(e)
	}
	for _, p := range s.graph.resolve(s.lookupLocked) {
		snap.Entangled = append(snap.Entangled, [2]string{p[0].ID, p[1].ID})
	}
	for _, p := range proximityPairsLocked(s.entities, DefaultProximityThreshold) {
		snap.ProximityPairs = append(snap.ProximityPairs, [2]string{p[0].ID, p[1].ID})
	}
	snap.MagnifiedTime = MagnifiedTime(s.accumulatedTime, s.aggregate)
	snap.Clock = FormatClock(snap.MagnifiedTime)
	snap.Marker = MarkerFor(s.aggregate)
	return snap
}
