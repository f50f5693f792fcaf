package trace

// TraceSummary aggregates a session trace.
type TraceSummary struct {
	TotalTicks     int
	ObservedTicks  int
	MeanAggregate  float64
	MinAggregate   float64
	MaxAggregate   float64
	TotalCommands  int
	AcceptedCount  int
	RejectedCount  int
	CommandCounts  map[string]int // command type -> count
	DroppedRecords int
}

// Summarize computes aggregate statistics from a SessionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SessionTrace) *TraceSummary {
	summary := &TraceSummary{
		CommandCounts: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	ticks := st.Ticks()
	summary.TotalTicks = len(ticks)
	var total float64
	for i, t := range ticks {
		if t.Observing {
			summary.ObservedTicks++
		}
		total += t.Aggregate
		if i == 0 || t.Aggregate < summary.MinAggregate {
			summary.MinAggregate = t.Aggregate
		}
		if i == 0 || t.Aggregate > summary.MaxAggregate {
			summary.MaxAggregate = t.Aggregate
		}
	}
	if len(ticks) > 0 {
		summary.MeanAggregate = total / float64(len(ticks))
	}

	commands := st.Commands()
	summary.TotalCommands = len(commands)
	for _, c := range commands {
		if c.OK {
			summary.AcceptedCount++
		} else {
			summary.RejectedCount++
		}
		summary.CommandCounts[c.Command]++
	}
	summary.DroppedRecords = st.Dropped()
	return summary
}
