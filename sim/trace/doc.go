// Package trace records what a running board did: one record per tick and
// one per UI command, bounded to the most recent entries, plus a summary
// computed at shutdown.
package trace
