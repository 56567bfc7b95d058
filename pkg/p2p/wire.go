package p2p

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(PricesWire{})
	gob.Register(BarrierWire{})
}

// PricesWire carries one venue's per-instrument last prices for a tick.
type PricesWire struct {
	Rank   int
	Tick   int
	Prices []float64
}

// BarrierWire announces that a venue finished a tick's work.
type BarrierWire struct {
	Rank int
	Tick int
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
