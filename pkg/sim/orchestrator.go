package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantmesh/tickmesh/pkg/market"
)

// Result summarizes one node's completed run. Global counts are folded
// across all venues through the collective layer.
type Result struct {
	Orders       uint64
	Trades       uint64
	Rejected     uint64
	GlobalOrders uint64
	GlobalTrades uint64
	ElapsedMS    int64
}

// Run drives the tick loop: GENERATING -> MATCHING -> SYNCING ->
// BARRIER, for the configured number of ticks. No venue begins tick T+1
// before every venue has passed tick T's barrier; that ordering is the
// whole point of the loop, so every phase transition below is strictly
// sequential relative to its predecessors.
func (n *Node) Run(ctx context.Context) (Result, error) {
	var res Result
	start := n.clock.Now()

	for tick := 0; tick < n.cfg.Ticks; tick++ {
		tickStart := n.clock.Now()

		// GENERATING: one worker per agent, joined before matching.
		n.phase(tick, Generating)
		orders, rejected, err := n.generate(ctx, tick)
		if err != nil {
			return res, fmt.Errorf("tick %d generate: %w", tick, err)
		}
		res.Orders += orders
		res.Rejected += rejected

		// MATCHING: single-threaded against the books.
		n.phase(tick, Matching)
		trades := n.ex.Process(tick)
		res.Trades += uint64(trades)
		if n.cfg.OnTick != nil {
			n.cfg.OnTick(tick, trades)
		}

		// SYNCING: collective reduce-mean over local last prices.
		n.phase(tick, Syncing)
		global, err := n.sync.Aggregate(ctx, tick, n.ex.AllPrices())
		if err != nil {
			return res, fmt.Errorf("tick %d aggregate: %w", tick, err)
		}
		n.ex.ReconcileGlobal(global)

		// BARRIER: lock-step with every other venue.
		n.phase(tick, Barrier)
		if err := n.sync.Barrier(ctx, tick); err != nil {
			return res, fmt.Errorf("tick %d barrier: %w", tick, err)
		}

		n.report(tick, res)
		if err := n.pace(ctx, tickStart); err != nil {
			return res, err
		}
	}

	res.ElapsedMS = n.clock.Now().Sub(start).Milliseconds()
	if err := n.foldGlobalTotals(ctx, &res); err != nil {
		return res, err
	}
	n.summarize(res)

	if err := n.export(); err != nil {
		return res, err
	}
	return res, nil
}

// generate fans out one worker per agent and joins them all before
// returning. Each worker reads its instrument's snapshot, asks its
// agent for orders, and submits them. A validation rejection is counted
// and skipped, never fatal.
func (n *Node) generate(ctx context.Context, tick int) (orders, rejected uint64, err error) {
	perWorker := make([]uint64, len(n.agents))
	perWorkerRejected := make([]uint64, len(n.agents))

	g, ctx := errgroup.WithContext(ctx)
	for w := range n.agents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			instrument := w % n.cfg.Instruments
			price := n.ex.Price(instrument)
			avg := n.ex.HistoricalAverage(instrument)

			for _, o := range n.agents[w].Generate(instrument, price, avg, tick) {
				if _, err := n.ex.Submit(o); err != nil {
					if errors.Is(err, market.ErrInvalidPrice) || errors.Is(err, market.ErrInvalidVolume) {
						perWorkerRejected[w]++
						continue
					}
					return err
				}
				perWorker[w]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	for w := range perWorker {
		orders += perWorker[w]
		rejected += perWorkerRejected[w]
	}
	return orders, rejected, nil
}

func (n *Node) phase(tick int, p Phase) {
	if n.cfg.OnPhase != nil {
		n.cfg.OnPhase(n.cfg.Rank, tick, p)
	}
}

// pace enforces MinTickTime so demo runs stay readable.
func (n *Node) pace(ctx context.Context, tickStart time.Time) error {
	if n.cfg.MinTickTime <= 0 {
		return nil
	}
	elapsed := n.clock.Now().Sub(tickStart)
	if elapsed >= n.cfg.MinTickTime {
		return nil
	}
	select {
	case <-n.clock.After(n.cfg.MinTickTime - elapsed):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// foldGlobalTotals reuses the collective mean to recover run-wide
// order/trade counts: mean * size = sum. The tick index sits past the
// simulation range, so it can never collide with an in-loop aggregate.
func (n *Node) foldGlobalTotals(ctx context.Context, res *Result) error {
	local := []float64{float64(res.Orders), float64(res.Trades)}
	mean, err := n.sync.Aggregate(ctx, n.cfg.Ticks, local)
	if err != nil {
		return fmt.Errorf("fold totals: %w", err)
	}
	size := float64(n.sync.Size())
	res.GlobalOrders = uint64(mean[0]*size + 0.5)
	res.GlobalTrades = uint64(mean[1]*size + 0.5)
	return nil
}

func (n *Node) export() error {
	histories := make([][]float64, n.cfg.Instruments)
	for i := 0; i < n.cfg.Instruments; i++ {
		histories[i] = n.ex.Book(i).History()
	}
	for _, s := range n.sinks {
		if err := s.ExportTrades(n.cfg.Rank, n.ex.Trades()); err != nil {
			return fmt.Errorf("export trades: %w", err)
		}
		if err := s.ExportPriceHistory(n.cfg.Rank, histories); err != nil {
			return fmt.Errorf("export price history: %w", err)
		}
	}
	return nil
}
