package sim

// DefaultProximityThreshold is the distance under which two entities pull
// on each other and under which a board draws a proximity line.
const DefaultProximityThreshold = 100.0

// ProximityPairs returns every unordered pair of entities closer than
// threshold, in collection order.
func (s *Store) ProximityPairs(threshold float64) [][2]EntityView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return proximityPairsLocked(s.entities, threshold)
}

func proximityPairsLocked(entities []*Entity, threshold float64) [][2]EntityView {
	var out [][2]EntityView
	for i, a := range entities {
		for _, b := range entities[i+1:] {
			if a.Position.Distance(b.Position) < threshold {
				out = append(out, [2]EntityView{viewOf(a), viewOf(b)})
			}
		}
	}
	return out
}

// proximityIntensity maps the probe's distance to the nearest entity onto
// [0, 1]: 1 on top of an entity, 0 at ProbeRange or beyond.
func proximityIntensity(entities []*Entity, probe *Point) float64 {
	if probe == nil || len(entities) == 0 {
		return 0
	}
	nearest := entities[0].Position.Distance(*probe)
	for _, e := range entities[1:] {
		if d := e.Position.Distance(*probe); d < nearest {
			nearest = d
		}
	}
	if nearest >= ProbeRange {
		return 0
	}
	intensity := (ProbeRange - nearest) / ProbeRange
	if intensity > 1 {
		return 1
	}
	return intensity
}
