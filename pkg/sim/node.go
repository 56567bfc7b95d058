package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/quantmesh/tickmesh/pkg/agent"
	"github.com/quantmesh/tickmesh/pkg/collective"
	"github.com/quantmesh/tickmesh/pkg/market"
	"github.com/quantmesh/tickmesh/pkg/util"
)

// Phase labels one step of a tick's state machine. Exposed so tests can
// instrument the lock-step ordering guarantee.
type Phase int

const (
	Generating Phase = iota
	Matching
	Syncing
	Barrier
)

func (p Phase) String() string {
	switch p {
	case Generating:
		return "generating"
	case Matching:
		return "matching"
	case Syncing:
		return "syncing"
	default:
		return "barrier"
	}
}

// Sink receives a node's results after the final tick.
type Sink interface {
	ExportTrades(rank int, trades []market.Trade) error
	ExportPriceHistory(rank int, histories [][]float64) error
}

type Config struct {
	Rank         int
	Agents       int
	Instruments  int
	Ticks        int
	InitialPrice float64
	ReportEvery  int
	MinTickTime  time.Duration

	// OnPhase, when set, is called at the start of every phase. Test
	// instrumentation only; must be fast and must not block.
	OnPhase func(rank, tick int, phase Phase)

	// OnTick, when set, is called after each tick's matching phase
	// with the number of trades executed. Feeds the observer API's
	// WebSocket stream; must not block.
	OnTick func(tick, trades int)
}

// Node is one venue: its exchange, its agent population, and its handle
// on the collective layer.
type Node struct {
	cfg    Config
	ex     *market.Exchange
	agents []*agent.Agent
	sync   collective.Synchronizer
	log    *zap.SugaredLogger
	clock  util.Clock
	sinks  []Sink
}

func NewNode(cfg Config, sync collective.Synchronizer, log *zap.SugaredLogger, sinks ...Sink) *Node {
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = 100
	}
	agents := make([]*agent.Agent, cfg.Agents)
	for w := range agents {
		id := cfg.Rank*cfg.Agents + w
		agents[w] = agent.New(id, agent.StrategyFor(w))
	}
	return &Node{
		cfg:    cfg,
		ex:     market.NewExchange(cfg.Rank, cfg.Instruments, cfg.InitialPrice),
		agents: agents,
		sync:   sync,
		log:    log,
		clock:  util.RealClock{},
		sinks:  sinks,
	}
}

func (n *Node) Exchange() *market.Exchange { return n.ex }
func (n *Node) Rank() int                  { return n.cfg.Rank }

// SetClock overrides the pacing clock. Tests only.
func (n *Node) SetClock(c util.Clock) { n.clock = c }

// SetOnTick installs the per-tick callback after construction; the
// observer API needs the node's exchange before it can exist.
func (n *Node) SetOnTick(f func(tick, trades int)) { n.cfg.OnTick = f }
