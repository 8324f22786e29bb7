package orderbook

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceBucket is the FIFO queue of resting entries at a single price.
// TotalVolume always equals the sum of the entries' remaining quantities;
// all mutation goes through Add, Remove and ApplyFill.
type PriceBucket struct {
	Price       decimal.Decimal
	TotalVolume decimal.Decimal

	head, tail *Entry
	count      int
}

func NewPriceBucket(price decimal.Decimal) *PriceBucket {
	return &PriceBucket{Price: price, TotalVolume: decimal.Zero}
}

// Add appends an entry to the queue tail. Arrival order is never reordered,
// so time priority within the level is the append order.
func (b *PriceBucket) Add(e *Entry) {
	e.bucket = b
	if b.head == nil {
		b.head = e
		b.tail = e
	} else {
		b.tail.next = e
		e.prev = b.tail
		b.tail = e
	}
	b.TotalVolume = b.TotalVolume.Add(e.Remaining)
	b.count++
}

// Remove unlinks an entry anywhere in the queue. An explicit cancel may
// target a non-head entry. Returns false if e does not belong to b.
func (b *PriceBucket) Remove(e *Entry) bool {
	if e.bucket != b {
		return false
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		b.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		b.tail = e.prev
	}
	e.next = nil
	e.prev = nil
	e.bucket = nil

	b.TotalVolume = b.TotalVolume.Sub(e.Remaining)
	b.count--
	return true
}

// Head returns the earliest-arrived entry, or nil for an empty bucket.
func (b *PriceBucket) Head() *Entry { return b.head }

// ApplyFill reduces the head entry's remaining quantity by qty, unlinking
// the head once it reaches zero. It reports whether the bucket is now
// empty. qty exceeding the head's remainder is an invariant violation:
// the caller computes trade quantity as a min, so a breach means the book
// is corrupt and processing of this instrument must stop.
func (b *PriceBucket) ApplyFill(qty decimal.Decimal) bool {
	e := b.head
	if e == nil {
		panic(fmt.Sprintf("orderbook: fill against empty bucket at %s", b.Price))
	}
	if qty.GreaterThan(e.Remaining) {
		panic(fmt.Sprintf("orderbook: fill %s exceeds head remainder %s at %s",
			qty, e.Remaining, b.Price))
	}

	e.Remaining = e.Remaining.Sub(qty)
	b.TotalVolume = b.TotalVolume.Sub(qty)

	if e.Remaining.IsZero() {
		b.Remove(e)
		// Remove already settled TotalVolume for the (now zero) remainder.
	}
	return b.count == 0
}

func (b *PriceBucket) Empty() bool { return b.count == 0 }

func (b *PriceBucket) Len() int { return b.count }
