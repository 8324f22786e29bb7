package orderbook

import "github.com/shopspring/decimal"

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the side that supplies liquidity to s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderKind int8

const (
	Limit    OrderKind = 1
	PostOnly OrderKind = 2
	FOK      OrderKind = 3
	IOC      OrderKind = 4
	Market   OrderKind = 5
)

func (k OrderKind) String() string {
	switch k {
	case Limit:
		return "limit"
	case PostOnly:
		return "post-only"
	case FOK:
		return "fok"
	case IOC:
		return "ioc"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

// Action, MarginMode and MarginKind are carried through the engine untouched;
// position bookkeeping happens downstream.
type (
	Action     int8
	MarginMode int8
	MarginKind int8
)

const (
	ActionSpot  Action = 0
	ActionOpen  Action = 1
	ActionClose Action = 2
	ActionAuto  Action = 3
)

// Order is a command-derived incoming order. Only the matching engine
// mutates it, and only on the instrument's single matching goroutine.
type Order struct {
	ID         uint64
	UserID     uint64
	Instrument string
	Kind       OrderKind
	Price      decimal.Decimal // zero for market orders
	Quantity   decimal.Decimal
	Remaining  decimal.Decimal
	Side       Side
	Action     Action
	MarginMode MarginMode
	MarginKind MarginKind
	CreateTime int64 // unix millis, taken from the command
}

// Entry is the resting projection of an order inside the book. It lives in
// exactly one price bucket; next/prev link the bucket's FIFO queue.
type Entry struct {
	OrderID    uint64
	UserID     uint64
	Price      decimal.Decimal
	Side       Side
	Remaining  decimal.Decimal
	Kind       OrderKind
	EnqueuedAt int64

	next, prev *Entry
	bucket     *PriceBucket
}

// Next returns the entry behind e in its bucket's queue.
func (e *Entry) Next() *Entry { return e.next }

// Liquidity is the common view the matching engine needs of either party to
// a trade: the incoming taker order or a resting maker entry.
type Liquidity interface {
	Identity() (orderID, userID uint64)
	TradeSide() Side
	Attributes() (Action, MarginMode, MarginKind)
}

func (o *Order) Identity() (uint64, uint64) { return o.ID, o.UserID }
func (o *Order) TradeSide() Side            { return o.Side }
func (o *Order) Attributes() (Action, MarginMode, MarginKind) {
	return o.Action, o.MarginMode, o.MarginKind
}

func (e *Entry) Identity() (uint64, uint64) { return e.OrderID, e.UserID }
func (e *Entry) TradeSide() Side            { return e.Side }

// Attributes on a resting entry are zero: the book keeps only the fields
// needed for matching, and downstream treats maker fills as spot.
func (e *Entry) Attributes() (Action, MarginMode, MarginKind) { return 0, 0, 0 }
