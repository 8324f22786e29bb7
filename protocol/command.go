// Package protocol defines the wire contracts at the engine's edges: the
// inbound command envelope read off the ordered log and the outbound
// message wrapper downstream consumers deduplicate on.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"exmatch/domain/orderbook"
)

const (
	KindNew    = "NEW"
	KindCancel = "CANCEL"
)

var (
	ErrMalformed = errors.New("protocol: malformed command")
)

// Command is one record of an instrument's ordered input stream. Offset is
// assigned by the transport, not carried in the payload.
type Command struct {
	Kind          string          `json:"kind"`
	OrderID       uint64          `json:"orderId"`
	UserID        uint64          `json:"userId"`
	Instrument    string          `json:"instrument"`
	OrderKind     string          `json:"orderKind,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Side          string          `json:"side,omitempty"`
	Action        int8            `json:"action"`
	MarginMode    int8            `json:"marginMode"`
	MarginKind    int8            `json:"marginKind"`
	StopPrice     decimal.Decimal `json:"stopPrice"`
	MaxNotional   decimal.Decimal `json:"maxNotional"`
	CloseQuantity decimal.Decimal `json:"closeQuantity"`
	Timestamp     int64           `json:"timestamp"`

	Offset int64 `json:"-"`
}

func DecodeCommand(data []byte, offset int64) (*Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.Offset = offset
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate performs the structural checks of the error taxonomy: a command
// failing them is rejected whole, never partially applied.
func (c *Command) Validate() error {
	if c.OrderID == 0 {
		return fmt.Errorf("%w: missing order id", ErrMalformed)
	}
	if c.Instrument == "" {
		return fmt.Errorf("%w: missing instrument", ErrMalformed)
	}
	switch c.Kind {
	case KindCancel:
		return nil
	case KindNew:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, c.Kind)
	}

	if _, err := c.ParseSide(); err != nil {
		return err
	}
	kind, err := c.ParseOrderKind()
	if err != nil {
		return err
	}
	if c.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive quantity", ErrMalformed)
	}
	if kind != orderbook.Market && c.Price.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive price on %s order", ErrMalformed, kind)
	}
	return nil
}

func (c *Command) ParseSide() (orderbook.Side, error) {
	switch c.Side {
	case "buy":
		return orderbook.Buy, nil
	case "sell":
		return orderbook.Sell, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrMalformed, c.Side)
	}
}

func (c *Command) ParseOrderKind() (orderbook.OrderKind, error) {
	switch c.OrderKind {
	case "limit":
		return orderbook.Limit, nil
	case "post-only":
		return orderbook.PostOnly, nil
	case "fok":
		return orderbook.FOK, nil
	case "ioc":
		return orderbook.IOC, nil
	case "market":
		return orderbook.Market, nil
	default:
		return 0, fmt.Errorf("%w: unknown order kind %q", ErrMalformed, c.OrderKind)
	}
}

// ToOrder converts a validated NEW command into a domain order. Market
// orders carry a zero price regardless of the payload.
func (c *Command) ToOrder() (*orderbook.Order, error) {
	side, err := c.ParseSide()
	if err != nil {
		return nil, err
	}
	kind, err := c.ParseOrderKind()
	if err != nil {
		return nil, err
	}
	price := c.Price
	if kind == orderbook.Market {
		price = decimal.Zero
	}
	return &orderbook.Order{
		ID:         c.OrderID,
		UserID:     c.UserID,
		Instrument: c.Instrument,
		Kind:       kind,
		Price:      price,
		Quantity:   c.Quantity,
		Remaining:  c.Quantity,
		Side:       side,
		Action:     orderbook.Action(c.Action),
		MarginMode: orderbook.MarginMode(c.MarginMode),
		MarginKind: orderbook.MarginKind(c.MarginKind),
		CreateTime: c.Timestamp,
	}, nil
}
