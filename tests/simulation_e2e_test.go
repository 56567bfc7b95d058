// file: tests/simulation_e2e_test.go
package tests

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/quantmesh/tickmesh/pkg/collective"
	"github.com/quantmesh/tickmesh/pkg/export"
	"github.com/quantmesh/tickmesh/pkg/sim"
	"github.com/quantmesh/tickmesh/pkg/storage"
)

// TestLocalnetEndToEnd: four venues over the in-process collective,
// with both CSV and pebble sinks, verified after the run.
func TestLocalnetEndToEnd(t *testing.T) {
	const (
		nodes       = 4
		agents      = 8
		instruments = 3
		ticks       = 50
	)

	dir := t.TempDir()
	group := collective.NewGroup(nodes)

	csvSink, err := export.NewCSVSink(dir)
	if err != nil {
		t.Fatalf("csv sink: %v", err)
	}

	venues := make([]*sim.Node, nodes)
	ledgers := make([]*storage.LedgerStore, nodes)
	results := make([]sim.Result, nodes)

	g, ctx := errgroup.WithContext(context.Background())
	for rank := 0; rank < nodes; rank++ {
		ledger, err := storage.NewLedgerStore(filepath.Join(dir, fmt.Sprintf("ledger_%d", rank)))
		if err != nil {
			t.Fatalf("ledger %d: %v", rank, err)
		}
		defer ledger.Close()
		ledgers[rank] = ledger

		venues[rank] = sim.NewNode(sim.Config{
			Rank:         rank,
			Agents:       agents,
			Instruments:  instruments,
			Ticks:        ticks,
			InitialPrice: 100.0,
			ReportEvery:  1000,
		}, group.Member(rank), nil, csvSink, ledger)

		g.Go(func() error {
			res, err := venues[rank].Run(ctx)
			results[rank] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("run: %v", err)
	}

	for rank := 0; rank < nodes; rank++ {
		ex := venues[rank].Exchange()

		// Ledger store replays exactly the exchange's trade ledger.
		stored, err := ledgers[rank].Trades()
		if err != nil {
			t.Fatalf("rank %d: replay ledger: %v", rank, err)
		}
		if len(stored) != len(ex.Trades()) {
			t.Errorf("rank %d: ledger has %d trades, exchange has %d", rank, len(stored), len(ex.Trades()))
		}
		for i := range stored {
			if stored[i] != ex.Trades()[i] {
				t.Errorf("rank %d: trade %d mismatch: %+v vs %+v", rank, i, stored[i], ex.Trades()[i])
				break
			}
		}

		// CSV trade log: header + one row per trade.
		rows := readCSV(t, filepath.Join(dir, fmt.Sprintf("trades_rank_%d.csv", rank)))
		if len(rows) != len(ex.Trades())+1 {
			t.Errorf("rank %d: trade CSV has %d rows, want %d", rank, len(rows), len(ex.Trades())+1)
		}
		if rows[0][0] != "Timestamp" || rows[0][2] != "Price" {
			t.Errorf("rank %d: unexpected trade CSV header %v", rank, rows[0])
		}

		// Price table: one column per instrument, padded to the
		// longest history.
		rows = readCSV(t, filepath.Join(dir, fmt.Sprintf("prices_rank_%d.csv", rank)))
		if len(rows[0]) != instruments+1 {
			t.Errorf("rank %d: price CSV has %d columns, want %d", rank, len(rows[0]), instruments+1)
		}
		maxHist := 0
		for i := 0; i < instruments; i++ {
			if n := len(ex.Book(i).History()); n > maxHist {
				maxHist = n
			}
		}
		if len(rows) != maxHist+1 {
			t.Errorf("rank %d: price CSV has %d rows, want %d", rank, len(rows), maxHist+1)
		}

		// Book invariant: never crossed after the final tick.
		for i := 0; i < instruments; i++ {
			bids, asks := ex.Book(i).BidLevels(), ex.Book(i).AskLevels()
			if len(bids) > 0 && len(asks) > 0 && bids[0].Price >= asks[0].Price {
				t.Errorf("rank %d instrument %d: crossed book %v >= %v", rank, i, bids[0].Price, asks[0].Price)
			}
		}

		if ex.Dropped() != 0 {
			t.Errorf("rank %d: %d orders dropped; agents only target known instruments", rank, ex.Dropped())
		}
	}

	// Global totals agree everywhere.
	for rank := 1; rank < nodes; rank++ {
		if results[rank].GlobalOrders != results[0].GlobalOrders {
			t.Errorf("rank %d: global orders %d != rank 0's %d", rank, results[rank].GlobalOrders, results[0].GlobalOrders)
		}
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}
