// Package storage persists a node's trade ledger in Pebble. Keys are
// big-endian sequence numbers under a "t:" prefix so an iterator
// replays trades in execution order.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/quantmesh/tickmesh/pkg/market"
)

type LedgerStore struct {
	db   *pebble.DB
	next uint64
}

func NewLedgerStore(path string) (*LedgerStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &LedgerStore{db: db, next: 1}, nil
}

func (s *LedgerStore) Close() error { return s.db.Close() }

// keys: t:<8-byte-seq>, m:rank
func kTrade(seq uint64) []byte { return append([]byte("t:"), u64Key(seq)...) }
func kRank() []byte            { return []byte("m:rank") }

// ExportTrades appends every trade to the store. Implements sim.Sink.
func (s *LedgerStore) ExportTrades(rank int, trades []market.Trade) error {
	if err := s.db.Set(kRank(), u64Key(uint64(rank)), pebble.Sync); err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, t := range trades {
		val, err := encodeGob(t)
		if err != nil {
			return fmt.Errorf("encode trade: %w", err)
		}
		if err := batch.Set(kTrade(s.next), val, nil); err != nil {
			return err
		}
		s.next++
	}
	return batch.Commit(pebble.Sync)
}

// ExportPriceHistory is a no-op: the price table is a derived artifact
// and lives in the CSV sink. Implements sim.Sink.
func (s *LedgerStore) ExportPriceHistory(rank int, histories [][]float64) error {
	return nil
}

// Trades replays the ledger in execution order.
func (s *LedgerStore) Trades() ([]market.Trade, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("t:"),
		UpperBound: []byte("t;"), // ';' is ':'+1
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []market.Trade
	for it.First(); it.Valid(); it.Next() {
		var t market.Trade
		if err := decodeGob(it.Value(), &t); err != nil {
			return nil, fmt.Errorf("decode trade: %w", err)
		}
		out = append(out, t)
	}
	return out, it.Error()
}
