package collective

import (
	"context"
	"fmt"
	"sync"
)

// Group fans in N venues running in one process. It backs localnet runs
// and lets the tick orchestration be tested without a real transport.
type Group struct {
	size int

	mu       sync.Mutex
	reduces  map[int]*gather
	barriers map[int]*gather
}

// gather accumulates one collective call. done is closed when the last
// participant arrives; waiters hold the pointer, so the group can
// forget the tick entry immediately after completion.
type gather struct {
	arrived int
	sum     []float64
	result  []float64
	done    chan struct{}
}

func NewGroup(size int) *Group {
	return &Group{
		size:     size,
		reduces:  make(map[int]*gather),
		barriers: make(map[int]*gather),
	}
}

// Member returns the Synchronizer handle for one simulated venue.
func (g *Group) Member(rank int) Synchronizer {
	return &member{group: g, rank: rank}
}

type member struct {
	group *Group
	rank  int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.group.size }

func (m *member) Aggregate(ctx context.Context, tick int, local []float64) ([]float64, error) {
	g := m.group

	g.mu.Lock()
	ga, ok := g.reduces[tick]
	if !ok {
		ga = &gather{sum: make([]float64, len(local)), done: make(chan struct{})}
		g.reduces[tick] = ga
	}
	if len(local) != len(ga.sum) {
		g.mu.Unlock()
		return nil, fmt.Errorf("aggregate tick %d: vector length %d, peers sent %d", tick, len(local), len(ga.sum))
	}
	for i, v := range local {
		ga.sum[i] += v
	}
	ga.arrived++
	if ga.arrived == g.size {
		ga.result = make([]float64, len(ga.sum))
		for i, v := range ga.sum {
			ga.result[i] = v / float64(g.size)
		}
		delete(g.reduces, tick)
		close(ga.done)
	}
	g.mu.Unlock()

	select {
	case <-ga.done:
		return ga.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *member) Barrier(ctx context.Context, tick int) error {
	g := m.group

	g.mu.Lock()
	ga, ok := g.barriers[tick]
	if !ok {
		ga = &gather{done: make(chan struct{})}
		g.barriers[tick] = ga
	}
	ga.arrived++
	if ga.arrived == g.size {
		delete(g.barriers, tick)
		close(ga.done)
	}
	g.mu.Unlock()

	select {
	case <-ga.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
