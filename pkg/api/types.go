package api

import "github.com/quantmesh/tickmesh/pkg/market"

// PricesResponse pairs the local view with the latest cross-venue
// consensus vector.
type PricesResponse struct {
	Rank   int       `json:"rank"`
	Local  []float64 `json:"local"`
	Global []float64 `json:"global,omitempty"`
}

type BookResponse struct {
	Instrument int                 `json:"instrument"`
	LastPrice  float64             `json:"last_price"`
	HistAvg    float64             `json:"historical_average"`
	Bids       []market.PriceLevel `json:"bids"`
	Asks       []market.PriceLevel `json:"asks"`
}

type TradesResponse struct {
	Count  int         `json:"count"`
	Trades []TradeInfo `json:"trades"`
}

type TradeInfo struct {
	Tick       int     `json:"tick"`
	Instrument int     `json:"instrument"`
	Price      float64 `json:"price"`
	Volume     int64   `json:"volume"`
	BuyAgent   int     `json:"buy_agent"`
	SellAgent  int     `json:"sell_agent"`
}

type StatusResponse struct {
	Rank        int    `json:"rank"`
	Instruments int    `json:"instruments"`
	Trades      int    `json:"trades"`
	Dropped     uint64 `json:"dropped"`
}

// TickUpdate is the per-tick WS broadcast payload.
type TickUpdate struct {
	Type   string    `json:"type"` // "tick"
	Tick   int       `json:"tick"`
	Prices []float64 `json:"prices"`
	Trades int       `json:"trades"`
}

func tradeInfo(t market.Trade) TradeInfo {
	return TradeInfo{
		Tick:       t.Tick,
		Instrument: t.Instrument,
		Price:      t.Price,
		Volume:     t.Volume,
		BuyAgent:   t.BuyAgent,
		SellAgent:  t.SellAgent,
	}
}
