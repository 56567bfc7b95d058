package market

import "sync"

// Exchange is one venue's aggregate: a book per instrument, the
// concurrent order intake, the order-id allocator, and the trade
// ledger.
//
// Submit is the only entry point contended by multiple goroutines; its
// critical section is an id increment plus an append. Routing, matching,
// and ledger writes run on the single tick goroutine, so the books
// themselves carry no locks. The obs lock exists for observers (the API
// server) reading that state from other goroutines; it is never taken
// on the submit path.
type Exchange struct {
	rank  int
	books []*OrderBook

	mu      sync.Mutex
	pending []*Order
	nextID  uint64

	// obs guards the fields below plus the books. Write-locked only by
	// Process and ReconcileGlobal on the tick goroutine. trades is the
	// append-only ledger, dropped counts orders routed to an unknown
	// instrument, global is the latest cross-venue consensus vector.
	obs     sync.RWMutex
	trades  []Trade
	dropped uint64
	global  []float64
}

func NewExchange(rank, numInstruments int, initialPrice float64) *Exchange {
	books := make([]*OrderBook, numInstruments)
	for i := range books {
		books[i] = NewOrderBook(initialPrice)
	}
	return &Exchange{
		rank:   rank,
		books:  books,
		nextID: 1,
	}
}

func (e *Exchange) Rank() int        { return e.rank }
func (e *Exchange) Instruments() int { return len(e.books) }

// Submit validates the order, assigns it the next order id, and queues
// it for the next matching phase. Safe for concurrent use. Matching
// never runs while the intake lock is held.
func (e *Exchange) Submit(o *Order) (uint64, error) {
	if o.Price <= 0 {
		return 0, ErrInvalidPrice
	}
	if o.Volume <= 0 {
		return 0, ErrInvalidVolume
	}

	e.mu.Lock()
	o.ID = e.nextID
	e.nextID++
	e.pending = append(e.pending, o)
	e.mu.Unlock()
	return o.ID, nil
}

// Process drains the intake queue, routes each order to its book, then
// matches every book in ascending instrument order so a tick's results
// are reproducible. Orders naming an unknown instrument are dropped,
// not surfaced: submission already validated everything the caller is
// accountable for, and a bad route here means a misconfigured agent,
// which the drop counter makes visible. Returns the number of trades
// executed this tick.
func (e *Exchange) Process(tick int) int {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.obs.Lock()
	defer e.obs.Unlock()

	for _, o := range batch {
		if o.Instrument < 0 || o.Instrument >= len(e.books) {
			e.dropped++
			continue
		}
		e.books[o.Instrument].Add(o)
	}

	total := 0
	for i := range e.books {
		trades := e.books[i].Match(tick)
		total += len(trades)
		e.trades = append(e.trades, trades...)
	}
	return total
}

// Price returns the last traded price for the instrument, or 0 for an
// unknown instrument.
func (e *Exchange) Price(instrument int) float64 {
	if instrument < 0 || instrument >= len(e.books) {
		return 0
	}
	e.obs.RLock()
	defer e.obs.RUnlock()
	return e.books[instrument].LastPrice()
}

func (e *Exchange) HistoricalAverage(instrument int) float64 {
	if instrument < 0 || instrument >= len(e.books) {
		return 0
	}
	e.obs.RLock()
	defer e.obs.RUnlock()
	return e.books[instrument].HistoricalAverage()
}

// AllPrices snapshots every instrument's last price, in instrument
// order. This is the vector handed to the collective layer each tick.
func (e *Exchange) AllPrices() []float64 {
	e.obs.RLock()
	defer e.obs.RUnlock()
	prices := make([]float64, len(e.books))
	for i, b := range e.books {
		prices[i] = b.LastPrice()
	}
	return prices
}

// ReconcileGlobal is invoked after each tick's collective aggregation
// with the cross-venue mean prices. Local quoting is deliberately not
// overridden; the vector is retained so observers can compare local and
// global views.
func (e *Exchange) ReconcileGlobal(prices []float64) {
	e.obs.Lock()
	e.global = append(e.global[:0], prices...)
	e.obs.Unlock()
}

// GlobalPrices returns a copy of the most recent cross-venue consensus
// vector, or nil before the first sync. Copied because ReconcileGlobal
// reuses the backing array each tick.
func (e *Exchange) GlobalPrices() []float64 {
	e.obs.RLock()
	defer e.obs.RUnlock()
	if e.global == nil {
		return nil
	}
	out := make([]float64, len(e.global))
	copy(out, e.global)
	return out
}

// Trades returns the append-only trade ledger. The returned slice is a
// stable snapshot: recorded trades are never mutated in place.
func (e *Exchange) Trades() []Trade {
	e.obs.RLock()
	defer e.obs.RUnlock()
	return e.trades
}

// Dropped returns how many orders were discarded for naming an unknown
// instrument.
func (e *Exchange) Dropped() uint64 {
	e.obs.RLock()
	defer e.obs.RUnlock()
	return e.dropped
}

// BookSnapshot captures an instrument's observable book state at one
// instant, for serving to concurrent readers.
type BookSnapshot struct {
	LastPrice float64
	HistAvg   float64
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// Snapshot returns the instrument's current book state, or false for an
// unknown instrument. Safe to call while the tick loop is running;
// mid-tick callers may see the previous tick's state.
func (e *Exchange) Snapshot(instrument int) (BookSnapshot, bool) {
	if instrument < 0 || instrument >= len(e.books) {
		return BookSnapshot{}, false
	}
	e.obs.RLock()
	defer e.obs.RUnlock()
	b := e.books[instrument]
	return BookSnapshot{
		LastPrice: b.LastPrice(),
		HistAvg:   b.HistoricalAverage(),
		Bids:      b.BidLevels(),
		Asks:      b.AskLevels(),
	}, true
}

// Book exposes an instrument's order book directly. Unsynchronized;
// callers must not hold it across a tick boundary while the loop runs.
// Concurrent observers use Snapshot instead.
func (e *Exchange) Book(instrument int) *OrderBook {
	if instrument < 0 || instrument >= len(e.books) {
		return nil
	}
	return e.books[instrument]
}
