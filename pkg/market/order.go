package market

import "errors"

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Submission validation errors. Degenerate orders are rejected at the
// exchange boundary rather than allowed to poison a book.
var (
	ErrInvalidPrice  = errors.New("order price must be positive")
	ErrInvalidVolume = errors.New("order volume must be positive")
)

// Order is a limit order resting on, or bound for, a single book.
// Volume is the only field mutated after creation: it shrinks on
// partial fills. ID and SubmitTick are fixed at submission, so a
// partially filled order keeps its original time priority.
type Order struct {
	AgentID    int
	Instrument int
	Price      float64
	Volume     int64
	Side       Side
	SubmitTick int
	ID         uint64 // assigned by the exchange, strictly increasing per node
}

// Trade records one execution. Immutable once created; the exchange
// ledger is append-only.
type Trade struct {
	BuyAgent   int
	SellAgent  int
	Instrument int
	Price      float64
	Volume     int64
	Tick       int
}
