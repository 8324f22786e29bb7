// Package instrument describes tradable instruments as the engine sees
// them. The catalog that assigns instruments to nodes and partitions is an
// external service; this package only models the read-only configuration
// an engine instance is handed at startup.
package instrument

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Instrument is immutable for the lifetime of a running engine instance.
type Instrument struct {
	Symbol          string
	PriceDecimals   int32
	QuantityDecimals int32

	// Fee rates keyed by (side, maker-or-taker role).
	BuyMakerFee  decimal.Decimal
	BuyTakerFee  decimal.Decimal
	SellMakerFee decimal.Decimal
	SellTakerFee decimal.Decimal

	// FeeCurrency is the settlement currency for fees.
	FeeCurrency string

	// Partition of the ordered command log carrying this instrument.
	Partition int
}

func (in Instrument) Validate() error {
	if in.Symbol == "" {
		return fmt.Errorf("instrument: empty symbol")
	}
	if in.PriceDecimals < 0 || in.QuantityDecimals < 0 {
		return fmt.Errorf("instrument %s: negative decimal precision", in.Symbol)
	}
	if in.FeeCurrency == "" {
		return fmt.Errorf("instrument %s: missing fee currency", in.Symbol)
	}
	if in.Partition < 0 {
		return fmt.Errorf("instrument %s: negative partition", in.Symbol)
	}
	for _, rate := range []decimal.Decimal{in.BuyMakerFee, in.BuyTakerFee, in.SellMakerFee, in.SellTakerFee} {
		if rate.IsNegative() {
			return fmt.Errorf("instrument %s: negative fee rate", in.Symbol)
		}
	}
	return nil
}
