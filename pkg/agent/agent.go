package agent

import (
	"math/rand"

	"github.com/quantmesh/tickmesh/pkg/market"
)

// Strategy selects how an agent reacts to a market snapshot.
type Strategy int

const (
	RandomWalk Strategy = iota
	Momentum
	MeanReversion
	MarketMaker

	numStrategies = 4
)

func (s Strategy) String() string {
	switch s {
	case RandomWalk:
		return "random_walk"
	case Momentum:
		return "momentum"
	case MeanReversion:
		return "mean_reversion"
	default:
		return "market_maker"
	}
}

// StrategyFor assigns strategies round-robin by worker index.
func StrategyFor(worker int) Strategy { return Strategy(worker % numStrategies) }

// Agent generates orders from market snapshots. Each agent owns a
// private RNG seeded by its id, so generation is reproducible and
// workers never share generator state.
type Agent struct {
	id       int
	strategy Strategy
	rng      *rand.Rand

	momentumThreshold  float64
	reversionThreshold float64
}

func New(id int, strategy Strategy) *Agent {
	return &Agent{
		id:                 id,
		strategy:           strategy,
		rng:                rand.New(rand.NewSource(int64(id))),
		momentumThreshold:  0.5,
		reversionThreshold: 0.5,
	}
}

func (a *Agent) ID() int            { return a.id }
func (a *Agent) Strategy() Strategy { return a.strategy }

// Generate produces zero or more orders for one tick. It reads only
// its arguments, never exchange state.
func (a *Agent) Generate(instrument int, price, histAvg float64, tick int) []*market.Order {
	switch a.strategy {
	case RandomWalk:
		return a.randomWalk(instrument, price, tick)
	case Momentum:
		return a.momentum(instrument, price, histAvg, tick)
	case MeanReversion:
		return a.meanReversion(instrument, price, histAvg, tick)
	default:
		return a.marketMake(instrument, price, tick)
	}
}

func (a *Agent) order(instrument int, price float64, vol int64, side market.Side, tick int) *market.Order {
	return &market.Order{
		AgentID:    a.id,
		Instrument: instrument,
		Price:      price,
		Volume:     vol,
		Side:       side,
		SubmitTick: tick,
	}
}

// randomWalk flips a coin and crosses toward the far side.
func (a *Agent) randomWalk(instrument int, price float64, tick int) []*market.Order {
	side := market.Sell
	px := price * 1.01
	if a.rng.Float64() < 0.5 {
		side = market.Buy
		px = price * 0.99
	}
	vol := int64(a.rng.Intn(10)) + 1
	return []*market.Order{a.order(instrument, px, vol, side, tick)}
}

// momentum buys strength: above the historical average it chases the
// trend, below it it fades out.
func (a *Agent) momentum(instrument int, price, histAvg float64, tick int) []*market.Order {
	vol := int64(a.rng.Intn(10)) + 1
	if price > histAvg*(1.0+0.001*a.momentumThreshold) {
		return []*market.Order{a.order(instrument, price*1.005, vol, market.Buy, tick)}
	}
	return []*market.Order{a.order(instrument, price*0.995, vol, market.Sell, tick)}
}

// meanReversion bets the price returns to its historical average.
func (a *Agent) meanReversion(instrument int, price, histAvg float64, tick int) []*market.Order {
	vol := int64(a.rng.Intn(10)) + 1
	if price < histAvg*(1.0-0.001*a.reversionThreshold) {
		return []*market.Order{a.order(instrument, price*1.002, vol, market.Buy, tick)}
	}
	return []*market.Order{a.order(instrument, price*0.998, vol, market.Sell, tick)}
}

// marketMake quotes both sides around the current price.
func (a *Agent) marketMake(instrument int, price float64, tick int) []*market.Order {
	bidVol := int64(a.rng.Intn(5)) + 1
	askVol := int64(a.rng.Intn(5)) + 1
	return []*market.Order{
		a.order(instrument, price*0.999, bidVol, market.Buy, tick),
		a.order(instrument, price*1.001, askVol, market.Sell, tick),
	}
}
