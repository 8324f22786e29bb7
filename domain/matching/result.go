package matching

import (
	"fmt"

	"github.com/shopspring/decimal"

	"exmatch/domain/orderbook"
)

// TradeFill is one party's view of one match. CounterOrderID names the
// other party so downstream deduplication keys are well formed.
type TradeFill struct {
	TradeID        uint64              `json:"tradeId"`
	OrderID        uint64              `json:"orderId"`
	CounterOrderID uint64              `json:"counterOrderId"`
	UserID         uint64              `json:"userId"`
	Instrument     string              `json:"instrument"`
	Side           orderbook.Side      `json:"side"`
	Price          decimal.Decimal     `json:"price"`
	Quantity       decimal.Decimal     `json:"quantity"`
	Fee            decimal.Decimal     `json:"fee"`
	FeeCurrency    string              `json:"feeCurrency"`
	PnL            decimal.Decimal     `json:"pnl"` // computed downstream, always zero here
	Action         orderbook.Action    `json:"action"`
	MarginMode     orderbook.MarginMode `json:"marginMode"`
	MarginKind     orderbook.MarginKind `json:"marginKind"`
	IsMaker        bool                `json:"isMaker"`
	Timestamp      int64               `json:"timestamp"`
}

// DedupKey is the downstream idempotency key for a fill.
func (f TradeFill) DedupKey() string {
	taker, maker := f.OrderID, f.CounterOrderID
	isTaker := 1
	if f.IsMaker {
		taker, maker = f.CounterOrderID, f.OrderID
		isTaker = 0
	}
	return fmt.Sprintf("T-%d-%d-%d", taker, maker, isTaker)
}

// PublicTrade is the anonymized print of one match.
type PublicTrade struct {
	TradeID      uint64          `json:"tradeId"`
	Instrument   string          `json:"instrument"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	AggressorSide orderbook.Side `json:"aggressorSide"`
	TakerOrderID uint64          `json:"takerOrderId"`
	MakerOrderID uint64          `json:"makerOrderId"`
	Timestamp    int64           `json:"timestamp"`
}

func (p PublicTrade) DedupKey() string {
	return fmt.Sprintf("PT-%d-%d", p.TakerOrderID, p.MakerOrderID)
}

// LevelChange reports the new aggregate volume at one touched price level.
// Zero volume means the level is gone and should be removed downstream.
type LevelChange struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// BookUpdate is the delta over exactly the levels touched by one command.
type BookUpdate struct {
	Instrument string        `json:"instrument"`
	Bids       []LevelChange `json:"bids"`
	Asks       []LevelChange `json:"asks"`
	LastOffset int64         `json:"lastOffset"`
	Timestamp  int64         `json:"timestamp"`
}

func (u BookUpdate) DedupKey() string {
	return fmt.Sprintf("OB-%s-%d", u.Instrument, u.Timestamp)
}

// Result aggregates everything one input command produced. It is the
// handoff contract to the publisher and is never persisted.
type Result struct {
	// Taker is the taker-side fill, nil when the command took no liquidity
	// (a cancel, a resting limit order, a killed FOK).
	Taker  *TradeFill
	Makers []TradeFill
	Prints []PublicTrade
	Update BookUpdate
	Offset int64
}

// Trades reports whether the command produced any match.
func (r *Result) Trades() bool { return len(r.Prints) > 0 }
