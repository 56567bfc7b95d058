package market

import (
	"errors"
	"sort"
	"sync"
	"testing"
)

func TestSubmitRejectsDegenerateOrders(t *testing.T) {
	e := NewExchange(0, 1, 100.0)

	if _, err := e.Submit(order(1, 0, 0, 5, Buy, 0)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero price: err = %v, want ErrInvalidPrice", err)
	}
	if _, err := e.Submit(order(1, 0, -10, 5, Buy, 0)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("negative price: err = %v, want ErrInvalidPrice", err)
	}
	if _, err := e.Submit(order(1, 0, 100, 0, Buy, 0)); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("zero volume: err = %v, want ErrInvalidVolume", err)
	}
	if _, err := e.Submit(order(1, 0, 100, -1, Sell, 0)); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("negative volume: err = %v, want ErrInvalidVolume", err)
	}
	if e.Process(0) != 0 {
		t.Error("rejected orders must never reach a book")
	}
}

// Order ids must be unique and strictly increasing in allocation order,
// even under heavy concurrent submission.
func TestSubmitConcurrentIDAllocation(t *testing.T) {
	const workers = 16
	const perWorker = 200

	e := NewExchange(0, 1, 100.0)
	ids := make([][]uint64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := e.Submit(order(w, 0, 100, 1, Buy, 0))
				if err != nil {
					t.Errorf("worker %d: submit: %v", w, err)
					return
				}
				ids[w] = append(ids[w], id)
			}
		}(w)
	}
	wg.Wait()

	var all []uint64
	for w := range ids {
		// Per-submitter ids must be strictly increasing.
		for i := 1; i < len(ids[w]); i++ {
			if ids[w][i] <= ids[w][i-1] {
				t.Errorf("worker %d: id %d after %d", w, ids[w][i], ids[w][i-1])
			}
		}
		all = append(all, ids[w]...)
	}

	if len(all) != workers*perWorker {
		t.Fatalf("got %d ids, want %d", len(all), workers*perWorker)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("duplicate order id %d", all[i])
		}
	}
	if all[0] != 1 || all[len(all)-1] != uint64(workers*perWorker) {
		t.Errorf("ids span [%d,%d], want [1,%d] with no gaps", all[0], all[len(all)-1], workers*perWorker)
	}
}

func TestProcessRoutesAndDropsUnknownInstrument(t *testing.T) {
	e := NewExchange(0, 2, 100.0)

	mustSubmit(t, e, order(1, 0, 101, 10, Buy, 0))
	mustSubmit(t, e, order(2, 0, 99, 10, Sell, 0))
	mustSubmit(t, e, order(3, 5, 100, 10, Buy, 0))  // unknown instrument
	mustSubmit(t, e, order(4, -1, 100, 10, Buy, 0)) // unknown instrument

	if got := e.Process(0); got != 1 {
		t.Errorf("trades = %d, want 1", got)
	}
	if got := e.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
	if len(e.Trades()) != 1 {
		t.Errorf("ledger has %d trades, want 1", len(e.Trades()))
	}
}

// Instruments must match in ascending order so a tick is reproducible.
func TestProcessDeterministicInstrumentOrder(t *testing.T) {
	e := NewExchange(0, 3, 100.0)
	for inst := 2; inst >= 0; inst-- {
		mustSubmit(t, e, order(1, inst, 101, 5, Buy, 0))
		mustSubmit(t, e, order(2, inst, 99, 5, Sell, 0))
	}
	e.Process(0)

	trades := e.Trades()
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	for i, tr := range trades {
		if tr.Instrument != i {
			t.Errorf("trade %d on instrument %d, want %d", i, tr.Instrument, i)
		}
	}
}

func TestAllPricesAndReconcileGlobal(t *testing.T) {
	e := NewExchange(0, 2, 100.0)
	mustSubmit(t, e, order(1, 1, 105, 5, Buy, 0))
	mustSubmit(t, e, order(2, 1, 95, 5, Sell, 0))
	e.Process(0)

	prices := e.AllPrices()
	if prices[0] != 100.0 || prices[1] != 100.0 {
		t.Errorf("prices = %v, want [100 100]", prices)
	}

	e.ReconcileGlobal([]float64{101.5, 99.5})
	if e.Price(1) != 100.0 {
		t.Error("reconcile must not override the local book price")
	}
	got := e.GlobalPrices()
	if got[0] != 101.5 || got[1] != 99.5 {
		t.Errorf("global prices = %v, want [101.5 99.5]", got)
	}
}

// Observer accessors run on API goroutines while the tick loop mutates
// the exchange; under -race this fails without the obs lock.
func TestObserverReadsDuringTickLoop(t *testing.T) {
	e := NewExchange(0, 2, 100.0)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = e.Trades()
			_ = e.GlobalPrices()
			_ = e.Dropped()
			_ = e.AllPrices()
			if snap, ok := e.Snapshot(0); ok {
				_ = snap.Bids
				_ = snap.Asks
			}
		}
	}()

	for tick := 0; tick < 200; tick++ {
		mustSubmit(t, e, order(1, tick%2, 101, 5, Buy, tick))
		mustSubmit(t, e, order(2, tick%2, 99, 5, Sell, tick))
		e.Process(tick)
		e.ReconcileGlobal([]float64{100.0 + float64(tick), 100.0 - float64(tick)})
	}
	close(done)
	wg.Wait()

	if len(e.Trades()) != 200 {
		t.Errorf("ledger has %d trades, want 200", len(e.Trades()))
	}
}

func mustSubmit(t *testing.T, e *Exchange, o *Order) {
	t.Helper()
	if _, err := e.Submit(o); err != nil {
		t.Fatalf("submit: %v", err)
	}
}
