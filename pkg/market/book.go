package market

import "sort"

// PriceLevel aggregates resting volume at one price. Used by the
// observer API for depth snapshots.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

// OrderBook is the matching engine for a single instrument.
//
// Adding is an O(1) append with no ordering imposed; Match sorts both
// sides and walks the top of book. The book is single-writer: the
// owning exchange mutates it only during its sequential matching phase,
// so no locking happens here.
type OrderBook struct {
	bids []*Order
	asks []*Order

	lastPrice float64
	history   []float64 // one entry per trade, seeded with the initial price
}

func NewOrderBook(initialPrice float64) *OrderBook {
	return &OrderBook{
		lastPrice: initialPrice,
		history:   []float64{initialPrice},
	}
}

// Add appends the order to its side. No sorting happens until Match.
func (b *OrderBook) Add(o *Order) {
	if o.Side == Buy {
		b.bids = append(b.bids, o)
	} else {
		b.asks = append(b.asks, o)
	}
}

// Orders at equal price are ranked by submission tick, then by order id.
// The id tie-break falls out of the stable sort: ids are allocated in
// submission order and Add preserves it.
func bidBefore(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price // higher bid first
	}
	return a.SubmitTick < b.SubmitTick // earlier first
}

func askBefore(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price // lower ask first
	}
	return a.SubmitTick < b.SubmitTick
}

// Match runs one matching pass: sort both sides by price-time priority,
// then cross the top of book while the best bid meets the best ask.
// Each execution trades min(bid, ask) volume at the midpoint of the two
// resting prices and appends one entry to the price history. Fully
// filled orders are removed; partial fills rest with their original id
// and tick. Empty sides are a no-op.
func (b *OrderBook) Match(tick int) []Trade {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return nil
	}

	sort.SliceStable(b.bids, func(i, j int) bool { return bidBefore(b.bids[i], b.bids[j]) })
	sort.SliceStable(b.asks, func(i, j int) bool { return askBefore(b.asks[i], b.asks[j]) })

	var trades []Trade
	bi, ai := 0, 0
	for bi < len(b.bids) && ai < len(b.asks) {
		bid, ask := b.bids[bi], b.asks[ai]
		if bid.Price < ask.Price {
			break // no cross
		}

		vol := min(bid.Volume, ask.Volume)
		t := Trade{
			BuyAgent:   bid.AgentID,
			SellAgent:  ask.AgentID,
			Instrument: bid.Instrument,
			Price:      (bid.Price + ask.Price) / 2,
			Volume:     vol,
			Tick:       tick,
		}
		trades = append(trades, t)

		b.lastPrice = t.Price
		b.history = append(b.history, t.Price)

		bid.Volume -= vol
		ask.Volume -= vol
		if bid.Volume == 0 {
			bi++
		}
		if ask.Volume == 0 {
			ai++
		}
	}

	b.bids = b.bids[bi:]
	b.asks = b.asks[ai:]
	return trades
}

func (b *OrderBook) LastPrice() float64 { return b.lastPrice }

// HistoricalAverage returns the mean over the whole price history,
// including the seed value. The history is never empty.
func (b *OrderBook) HistoricalAverage() float64 {
	var sum float64
	for _, p := range b.history {
		sum += p
	}
	return sum / float64(len(b.history))
}

// History returns the trade price history. The returned slice is the
// book's own backing array; callers must not mutate it.
func (b *OrderBook) History() []float64 { return b.history }

// BidLevels returns resting bid volume per price, best bid first.
func (b *OrderBook) BidLevels() []PriceLevel {
	return levels(b.bids, func(i, j PriceLevel) bool { return i.Price > j.Price })
}

// AskLevels returns resting ask volume per price, best ask first.
func (b *OrderBook) AskLevels() []PriceLevel {
	return levels(b.asks, func(i, j PriceLevel) bool { return i.Price < j.Price })
}

func levels(orders []*Order, before func(i, j PriceLevel) bool) []PriceLevel {
	byPrice := make(map[float64]int64)
	for _, o := range orders {
		byPrice[o.Price] += o.Volume
	}
	out := make([]PriceLevel, 0, len(byPrice))
	for p, v := range byPrice {
		out = append(out, PriceLevel{Price: p, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}
