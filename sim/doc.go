// Package sim provides the quantum chronometer simulation core.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - entity.go: Entity, its superposition Variant and singularity glyph
//   - store.go: the authoritative board state and its locking rules
//   - engine.go: the per-tick distortion computation
//   - chronometer.go: the command surface a board UI drives
//
// # Architecture
//
// The sim package owns the board model and its JSON document format
// (codec.go). Everything that talks to the outside world lives in
// sub-packages:
//   - sim/peer/: UDP broadcast of the aggregate distortion between instances
//   - sim/session/: the 20 Hz tick loop wiring chronometer, peers and feed
//   - sim/feed/: websocket snapshot stream and HTTP state endpoints
//   - sim/slots/: named save slots in SQLite
//   - sim/telemetry/: Prometheus metrics
//   - sim/trace/: bounded per-tick and per-command session trace
//
// # Concurrency
//
// One goroutine ticks. Commands (spawn, move, entangle, load, reset) may
// arrive from any goroutine and serialize on the store mutex. The external
// distortion cell is atomic and written only by the peer receiver.
//
// # Determinism
//
// Superposition draws and variant assignment come from Source values built
// by PartitionedRNG from a seed; the jitter term reads an injected Clock.
// Fixing both makes every tick reproducible.
package sim
