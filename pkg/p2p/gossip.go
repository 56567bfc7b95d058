package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/quantmesh/tickmesh/pkg/collective"
)

const (
	topicPrices  = "tick-prices"
	topicBarrier = "tick-barrier"

	retransmitInterval = 200 * time.Millisecond
)

// GossipSync backs the collective layer with libp2p gossipsub: each
// venue publishes its tick messages and blocks until one message per
// rank has arrived. There is no timeout path; a silent peer stalls
// every venue, which is the documented behavior of the protocol.
type GossipSync struct {
	h    host.Host
	ps   *pubsub.PubSub
	log  *zap.SugaredLogger
	rank int
	size int

	tPrices, tBarrier     *pubsub.Topic
	subPrices, subBarrier *pubsub.Subscription

	mu       sync.Mutex
	prices   map[int]map[int][]float64 // tick -> rank -> vector
	barriers map[int]map[int]struct{}  // tick -> ranks arrived

	// Highest completed tick per collective. Ticks are strictly
	// increasing, so late retransmissions at or below the watermark
	// can be discarded instead of accumulating forever.
	aggDone int
	barDone int

	// arrival wakes blocked collectors when any peer message lands.
	arrival chan struct{}
}

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Rank       int
	Size       int
	Logger     *zap.SugaredLogger
}

func NewGossipSync(ctx context.Context, cfg Config) (*GossipSync, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	g := &GossipSync{
		h: h, ps: ps, log: cfg.Logger,
		rank: cfg.Rank, size: cfg.Size,
		prices:   make(map[int]map[int][]float64),
		barriers: make(map[int]map[int]struct{}),
		aggDone:  -1,
		barDone:  -1,
		arrival:  make(chan struct{}, 64),
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if err := g.joinTopics(ctx); err != nil {
		return nil, err
	}
	go g.readPrices(ctx)
	go g.readBarriers(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("gossip_sync_ready", "rank", cfg.Rank, "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *GossipSync) joinTopics(ctx context.Context) error {
	var err error
	if g.tPrices, err = g.ps.Join(topicPrices); err != nil {
		return err
	}
	if g.tBarrier, err = g.ps.Join(topicBarrier); err != nil {
		return err
	}
	if g.subPrices, err = g.tPrices.Subscribe(); err != nil {
		return err
	}
	if g.subBarrier, err = g.tBarrier.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (g *GossipSync) Rank() int       { return g.rank }
func (g *GossipSync) Size() int       { return g.size }
func (g *GossipSync) Host() host.Host { return g.h }

func (g *GossipSync) Close() error { return g.h.Close() }

// Aggregate publishes this venue's vector and blocks until a vector per
// rank has arrived for the tick, then returns the per-position mean.
func (g *GossipSync) Aggregate(ctx context.Context, tick int, local []float64) ([]float64, error) {
	// Record our own contribution directly; the reader loop ignores
	// self-published messages so delivery-to-self semantics never
	// double count.
	g.mu.Lock()
	if g.prices[tick] == nil {
		g.prices[tick] = make(map[int][]float64)
	}
	g.prices[tick][g.rank] = local
	g.mu.Unlock()

	data, err := gobEncode(PricesWire{Rank: g.rank, Tick: tick, Prices: local})
	if err != nil {
		return nil, err
	}
	if err := g.tPrices.Publish(ctx, data); err != nil {
		return nil, fmt.Errorf("publish prices tick %d: %w", tick, err)
	}

	// Gossipsub gives no delivery guarantee before the mesh settles, so
	// the contribution is retransmitted until every rank is in. Peers
	// key arrivals by rank; duplicates are harmless.
	retransmit := time.NewTicker(retransmitInterval)
	defer retransmit.Stop()

	for {
		g.mu.Lock()
		got := g.prices[tick]
		if len(got) == g.size {
			mean := make([]float64, len(local))
			for _, vec := range got {
				if len(vec) != len(local) {
					g.mu.Unlock()
					return nil, fmt.Errorf("aggregate tick %d: vector length mismatch (%d vs %d)", tick, len(vec), len(local))
				}
				for i, v := range vec {
					mean[i] += v
				}
			}
			for i := range mean {
				mean[i] /= float64(g.size)
			}
			// Completing stops our retransmission for this tick. A
			// straggler that missed every copy so far is left to
			// gossipsub's message-cache replay (IWANT); if that cache
			// has rotated too, the straggler hangs, as any lost
			// contribution must under the no-timeout contract.
			delete(g.prices, tick)
			g.aggDone = tick
			g.mu.Unlock()
			return mean, nil
		}
		g.mu.Unlock()

		select {
		case <-g.arrival:
		case <-retransmit.C:
			_ = g.tPrices.Publish(ctx, data)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Barrier publishes this venue's arrival and blocks until all ranks
// have announced the same tick.
func (g *GossipSync) Barrier(ctx context.Context, tick int) error {
	g.mu.Lock()
	if g.barriers[tick] == nil {
		g.barriers[tick] = make(map[int]struct{})
	}
	g.barriers[tick][g.rank] = struct{}{}
	g.mu.Unlock()

	data, err := gobEncode(BarrierWire{Rank: g.rank, Tick: tick})
	if err != nil {
		return err
	}
	if err := g.tBarrier.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish barrier tick %d: %w", tick, err)
	}

	retransmit := time.NewTicker(retransmitInterval)
	defer retransmit.Stop()

	for {
		g.mu.Lock()
		arrived := len(g.barriers[tick])
		if arrived == g.size {
			// Same post-completion delivery reliance as Aggregate.
			delete(g.barriers, tick)
			g.barDone = tick
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		select {
		case <-g.arrival:
		case <-retransmit.C:
			_ = g.tBarrier.Publish(ctx, data)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *GossipSync) readPrices(ctx context.Context) {
	for {
		msg, err := g.subPrices.Next(ctx)
		if err != nil {
			return // subscription closed or ctx cancelled
		}
		var w PricesWire
		if err := gobDecode(msg.Data, &w); err != nil {
			if g.log != nil {
				g.log.Warnw("bad_prices_wire", "err", err)
			}
			continue
		}
		if w.Rank == g.rank {
			continue
		}
		g.mu.Lock()
		if w.Tick <= g.aggDone {
			g.mu.Unlock()
			continue
		}
		if g.prices[w.Tick] == nil {
			g.prices[w.Tick] = make(map[int][]float64)
		}
		g.prices[w.Tick][w.Rank] = w.Prices
		g.mu.Unlock()
		g.signal()
	}
}

func (g *GossipSync) readBarriers(ctx context.Context) {
	for {
		msg, err := g.subBarrier.Next(ctx)
		if err != nil {
			return
		}
		var w BarrierWire
		if err := gobDecode(msg.Data, &w); err != nil {
			if g.log != nil {
				g.log.Warnw("bad_barrier_wire", "err", err)
			}
			continue
		}
		if w.Rank == g.rank {
			continue
		}
		g.mu.Lock()
		if w.Tick <= g.barDone {
			g.mu.Unlock()
			continue
		}
		if g.barriers[w.Tick] == nil {
			g.barriers[w.Tick] = make(map[int]struct{})
		}
		g.barriers[w.Tick][w.Rank] = struct{}{}
		g.mu.Unlock()
		g.signal()
	}
}

func (g *GossipSync) signal() {
	select {
	case g.arrival <- struct{}{}:
	default:
		// Collector will re-check state on its next wakeup anyway.
	}
}

var _ collective.Synchronizer = (*GossipSync)(nil)
