package trace

// TickRecord captures the board after one tick.
type TickRecord struct {
	Tick            uint64  // 1-based tick number within the session
	AccumulatedTime float64 // simulated seconds observed so far
	Aggregate       float64 // aggregate distortion after the tick
	External        float64 // peer-supplied distortion included in Aggregate
	Observing       bool    // whether the tick ran under observation
	Entities        int     // live entities on the board
}

// CommandRecord captures one UI command and its outcome.
type CommandRecord struct {
	Tick    uint64 // ticks completed when the command was applied
	Command string // command type, "unknown" for unrecognized types
	OK      bool
	ID      string // entity id the command created or targeted, if any
}
