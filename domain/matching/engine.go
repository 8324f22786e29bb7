// Package matching turns inbound commands into trades and book deltas.
// One Engine owns one instrument's book; processing is synchronous and
// deterministic, so replaying the same command stream reproduces the same
// results byte for byte. Timestamps come from the command, never the clock.
package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"exmatch/domain/instrument"
	"exmatch/domain/orderbook"
)

const feeScale = 8

// Engine applies one command at a time against one order book. It is not
// safe for concurrent use; the service layer confines each engine to a
// single goroutine.
type Engine struct {
	book    *orderbook.OrderBook
	inst    instrument.Instrument
	tradeID uint64

	// Price levels touched while processing the current command, keyed by
	// canonical price string. Rebuilt per invocation.
	modBids map[string]decimal.Decimal
	modAsks map[string]decimal.Decimal
}

// NewEngine wires an engine to its book. lastTradeID seeds the trade-id
// counter, so a restored engine continues the sequence it snapshotted at.
func NewEngine(book *orderbook.OrderBook, inst instrument.Instrument, lastTradeID uint64) *Engine {
	return &Engine{
		book:    book,
		inst:    inst,
		tradeID: lastTradeID,
		modBids: make(map[string]decimal.Decimal),
		modAsks: make(map[string]decimal.Decimal),
	}
}

func (e *Engine) Book() *orderbook.OrderBook { return e.book }

// LastTradeID returns the most recently issued trade id.
func (e *Engine) LastTradeID() uint64 { return e.tradeID }

// ProcessNew applies a new-order command. The whole effect commits before
// the watermark advances; an offset at or below the watermark is rejected
// untouched so duplicate delivery cannot double-apply.
func (e *Engine) ProcessNew(o *orderbook.Order, offset int64) (*Result, error) {
	if offset <= e.book.LastOffset() {
		return nil, orderbook.ErrOffsetRegression
	}
	e.reset()
	res := &Result{Offset: offset}

	switch o.Kind {
	case orderbook.Market:
		// No price bound; any unfilled remainder is discarded.
		e.match(o, false, res)
	case orderbook.PostOnly:
		// Cross-checked upstream: rests immediately, never takes.
		e.rest(o)
	case orderbook.FOK:
		// Pre-scan fillable depth so a kill leaves the book untouched and
		// no partial fragments are ever emitted.
		if e.fullyFillable(o) {
			e.match(o, true, res)
		}
	default:
		e.match(o, true, res)
	}

	// Only a plain limit order rests its remainder.
	if o.Kind == orderbook.Limit && o.Remaining.Sign() > 0 {
		e.rest(o)
	}

	if err := e.book.AdvanceOffset(offset); err != nil {
		return nil, err
	}
	res.Update = e.buildUpdate(o.CreateTime)
	return res, nil
}

// ProcessCancel removes a resting order. An unknown id is an idempotent
// no-op: the watermark still advances and the delta is empty.
func (e *Engine) ProcessCancel(orderID uint64, offset int64, timestamp int64) (*Result, error) {
	if offset <= e.book.LastOffset() {
		return nil, orderbook.ErrOffsetRegression
	}
	e.reset()
	res := &Result{Offset: offset}

	if entry, ok := e.book.CancelOrder(orderID); ok {
		e.touch(entry.Side, entry.Price)
	}

	if err := e.book.AdvanceOffset(offset); err != nil {
		return nil, err
	}
	res.Update = e.buildUpdate(timestamp)
	return res, nil
}

// match consumes opposing liquidity in price-time priority order. The
// trade price is always the maker's resting price.
func (e *Engine) match(taker *orderbook.Order, limited bool, res *Result) {
	opp := taker.Side.Opposite()

	for taker.Remaining.Sign() > 0 {
		best, ok := e.book.Best(opp)
		if !ok {
			return
		}
		if limited && !crosses(taker.Side, taker.Price, best.Price) {
			return
		}

		maker := best.Head()
		qty := decimal.Min(taker.Remaining, maker.Remaining)
		price := maker.Price
		e.tradeID++

		takerFill := e.newFill(taker, maker.OrderID, price, qty, false, taker.CreateTime)
		makerFill := e.newFill(maker, taker.ID, price, qty, true, taker.CreateTime)
		res.Taker = &takerFill
		res.Makers = append(res.Makers, makerFill)
		res.Prints = append(res.Prints, PublicTrade{
			TradeID:       e.tradeID,
			Instrument:    e.inst.Symbol,
			Price:         price,
			Quantity:      qty,
			AggressorSide: taker.Side,
			TakerOrderID:  taker.ID,
			MakerOrderID:  maker.OrderID,
			Timestamp:     taker.CreateTime,
		})

		taker.Remaining = taker.Remaining.Sub(qty)
		e.book.FillBest(opp, qty)
		e.touch(opp, price)
	}
}

// rest puts the order's remainder on the book at its limit price.
func (e *Engine) rest(o *orderbook.Order) {
	e.book.AddOrder(o)
	e.touch(o.Side, o.Price)
}

// fullyFillable sums resting volume across levels that satisfy the limit,
// stopping as soon as the order's quantity is covered.
func (e *Engine) fullyFillable(o *orderbook.Order) bool {
	enough := false
	have := decimal.Zero
	e.book.Walk(o.Side.Opposite(), func(bucket *orderbook.PriceBucket) bool {
		if !crosses(o.Side, o.Price, bucket.Price) {
			return false
		}
		have = have.Add(bucket.TotalVolume)
		if have.GreaterThanOrEqual(o.Remaining) {
			enough = true
			return false
		}
		return true
	})
	return enough
}

// crosses reports whether a resting price satisfies the taker's limit:
// a buy takes asks at or below its limit, a sell takes bids at or above.
func crosses(takerSide orderbook.Side, limit, resting decimal.Decimal) bool {
	if takerSide == orderbook.Buy {
		return resting.LessThanOrEqual(limit)
	}
	return resting.GreaterThanOrEqual(limit)
}

func (e *Engine) newFill(p orderbook.Liquidity, counter uint64, price, qty decimal.Decimal, isMaker bool, ts int64) TradeFill {
	id, user := p.Identity()
	side := p.TradeSide()
	action, marginMode, marginKind := p.Attributes()
	return TradeFill{
		TradeID:        e.tradeID,
		OrderID:        id,
		CounterOrderID: counter,
		UserID:         user,
		Instrument:     e.inst.Symbol,
		Side:           side,
		Price:          price,
		Quantity:       qty,
		Fee:            e.fee(side, isMaker, price, qty),
		FeeCurrency:    e.inst.FeeCurrency,
		PnL:            decimal.Zero,
		Action:         action,
		MarginMode:     marginMode,
		MarginKind:     marginKind,
		IsMaker:        isMaker,
		Timestamp:      ts,
	}
}

// fee selects the configured rate by (side, role) and rounds half-up to
// eight fractional digits.
func (e *Engine) fee(side orderbook.Side, isMaker bool, price, qty decimal.Decimal) decimal.Decimal {
	var rate decimal.Decimal
	switch {
	case side == orderbook.Buy && isMaker:
		rate = e.inst.BuyMakerFee
	case side == orderbook.Buy:
		rate = e.inst.BuyTakerFee
	case isMaker:
		rate = e.inst.SellMakerFee
	default:
		rate = e.inst.SellTakerFee
	}
	return price.Mul(qty).Mul(rate).Round(feeScale)
}

func (e *Engine) touch(s orderbook.Side, price decimal.Decimal) {
	if s == orderbook.Buy {
		e.modBids[price.String()] = price
	} else {
		e.modAsks[price.String()] = price
	}
}

func (e *Engine) reset() {
	clear(e.modBids)
	clear(e.modAsks)
}

// buildUpdate emits the delta over exactly the touched levels: the current
// aggregate volume, or zero when the level is gone. Levels are ordered
// best price first so replayed streams serialize identically.
func (e *Engine) buildUpdate(timestamp int64) BookUpdate {
	return BookUpdate{
		Instrument: e.inst.Symbol,
		Bids:       e.changes(orderbook.Buy, e.modBids),
		Asks:       e.changes(orderbook.Sell, e.modAsks),
		LastOffset: e.book.LastOffset(),
		Timestamp:  timestamp,
	}
}

func (e *Engine) changes(s orderbook.Side, touched map[string]decimal.Decimal) []LevelChange {
	if len(touched) == 0 {
		return nil
	}
	out := make([]LevelChange, 0, len(touched))
	for _, price := range touched {
		vol, ok := e.book.LevelVolume(s, price)
		if !ok {
			vol = decimal.Zero
		}
		out = append(out, LevelChange{Price: price, Volume: vol})
	}
	sort.Slice(out, func(i, j int) bool {
		if s == orderbook.Buy {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
