package orderbook

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/shopspring/decimal"
)

// bookImage is the serialized form of a book. Entries are stored best
// price first and FIFO within a level, so restoring in order reproduces
// both price and time priority exactly.
type bookImage struct {
	Instrument string
	LastOffset int64
	Bids       []entryImage
	Asks       []entryImage
}

type entryImage struct {
	OrderID    uint64
	UserID     uint64
	Price      decimal.Decimal
	Remaining  decimal.Decimal
	Side       int8
	Kind       int8
	EnqueuedAt int64
}

// Snapshot serializes the full book state: both sides, the order index and
// the offset watermark. The caller must hold the single-writer role while
// this runs; the service routes capture through the matching goroutine.
func (b *OrderBook) Snapshot() ([]byte, error) {
	img := bookImage{
		Instrument: b.instrument,
		LastOffset: b.lastOffset,
	}

	collect := func(s Side) []entryImage {
		out := make([]entryImage, 0, len(b.index))
		b.side(s).Ascend(func(bucket *PriceBucket) bool {
			for e := bucket.Head(); e != nil; e = e.Next() {
				out = append(out, entryImage{
					OrderID:    e.OrderID,
					UserID:     e.UserID,
					Price:      e.Price,
					Remaining:  e.Remaining,
					Side:       int8(e.Side),
					Kind:       int8(e.Kind),
					EnqueuedAt: e.EnqueuedAt,
				})
			}
			return true
		})
		return out
	}
	img.Bids = collect(Buy)
	img.Asks = collect(Sell)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&img); err != nil {
		return nil, fmt.Errorf("orderbook: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore rebuilds a book from a Snapshot payload. A decode failure leaves
// no partial state behind: the caller gets ErrCorruptSnapshot and should
// fall back to an empty book.
func Restore(data []byte) (*OrderBook, error) {
	var img bookImage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	b := New(img.Instrument)
	b.lastOffset = img.LastOffset

	place := func(images []entryImage) error {
		for _, ei := range images {
			if ei.Remaining.Sign() <= 0 {
				return fmt.Errorf("%w: non-positive remainder on order %d",
					ErrCorruptSnapshot, ei.OrderID)
			}
			e := &Entry{
				OrderID:    ei.OrderID,
				UserID:     ei.UserID,
				Price:      ei.Price,
				Side:       Side(ei.Side),
				Remaining:  ei.Remaining,
				Kind:       OrderKind(ei.Kind),
				EnqueuedAt: ei.EnqueuedAt,
			}
			if _, dup := b.index[e.OrderID]; dup {
				return fmt.Errorf("%w: duplicate order %d", ErrCorruptSnapshot, e.OrderID)
			}
			tree := b.side(e.Side)
			bucket, ok := tree.Get(&PriceBucket{Price: e.Price})
			if !ok {
				bucket = NewPriceBucket(e.Price)
				tree.ReplaceOrInsert(bucket)
			}
			bucket.Add(e)
			b.index[e.OrderID] = e
		}
		return nil
	}
	if err := place(img.Bids); err != nil {
		return nil, err
	}
	if err := place(img.Asks); err != nil {
		return nil, err
	}
	return b, nil
}
