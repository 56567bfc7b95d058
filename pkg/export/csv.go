// Package export writes a completed run's artifacts as CSV: the trade
// ledger and a tick-indexed price table per instrument.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quantmesh/tickmesh/pkg/market"
)

// CSVSink writes trades_rank_<r>.csv and prices_rank_<r>.csv under Dir.
type CSVSink struct {
	Dir string
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &CSVSink{Dir: dir}, nil
}

func (s *CSVSink) ExportTrades(rank int, trades []market.Trade) error {
	path := filepath.Join(s.Dir, fmt.Sprintf("trades_rank_%d.csv", rank))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Timestamp", "Instrument", "Price", "Volume", "BuyAgent", "SellAgent"}); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			strconv.Itoa(t.Tick),
			strconv.Itoa(t.Instrument),
			strconv.FormatFloat(t.Price, 'g', -1, 64),
			strconv.FormatInt(t.Volume, 10),
			strconv.Itoa(t.BuyAgent),
			strconv.Itoa(t.SellAgent),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ExportPriceHistory writes one row per history index with a column per
// instrument. An instrument whose history is shorter than the longest
// is held at its last known value for the remaining rows.
func (s *CSVSink) ExportPriceHistory(rank int, histories [][]float64) error {
	path := filepath.Join(s.Dir, fmt.Sprintf("prices_rank_%d.csv", rank))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, 1, len(histories)+1)
	header[0] = "Tick"
	for i := range histories {
		header = append(header, fmt.Sprintf("Instrument_%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	maxLen := 0
	for _, h := range histories {
		if len(h) > maxLen {
			maxLen = len(h)
		}
	}

	for row := 0; row < maxLen; row++ {
		rec := make([]string, 1, len(histories)+1)
		rec[0] = strconv.Itoa(row)
		for _, h := range histories {
			v := 0.0
			switch {
			case row < len(h):
				v = h[row]
			case len(h) > 0:
				v = h[len(h)-1]
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
