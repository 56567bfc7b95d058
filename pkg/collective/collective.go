// Package collective provides the cross-venue coordination primitives:
// a reduce-and-average over per-instrument price vectors and a tick
// barrier. Both are blocking collective operations: every participating
// venue must call them for the same tick, and an absent participant
// stalls the run. There is deliberately no timeout; venues are trusted
// and co-launched, so a straggler is an operator problem, not a
// protocol one.
package collective

import "context"

// Synchronizer is the only coordination surface a venue sees. A node
// may not progress past either call unilaterally.
type Synchronizer interface {
	// Aggregate blocks until every node has contributed its price
	// vector for the tick, then returns the per-position arithmetic
	// mean across all nodes. Vector lengths must match across nodes.
	Aggregate(ctx context.Context, tick int, local []float64) ([]float64, error)

	// Barrier blocks until every node has reached it for the tick.
	Barrier(ctx context.Context, tick int) error

	Rank() int
	Size() int
}
