package orderbook

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const treeDegree = 32

// bidOrder sorts buckets so Min() is the highest price.
func bidOrder(a, b *PriceBucket) bool { return a.Price.GreaterThan(b.Price) }

// askOrder sorts buckets so Min() is the lowest price.
func askOrder(a, b *PriceBucket) bool { return a.Price.LessThan(b.Price) }

// Level is one aggregated price level, as exposed to market-data consumers.
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// OrderBook holds the two price-ordered sides of one instrument plus the
// order-id index and the last processed input offset. It is single-writer:
// exactly one matching goroutine per instrument touches it.
type OrderBook struct {
	instrument string
	bids       *btree.BTreeG[*PriceBucket]
	asks       *btree.BTreeG[*PriceBucket]
	index      map[uint64]*Entry
	lastOffset int64
}

func New(instrument string) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bids:       btree.NewG(treeDegree, bidOrder),
		asks:       btree.NewG(treeDegree, askOrder),
		index:      make(map[uint64]*Entry),
		lastOffset: -1,
	}
}

func (b *OrderBook) Instrument() string { return b.instrument }

func (b *OrderBook) side(s Side) *btree.BTreeG[*PriceBucket] {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// AddOrder rests an order on the book: the order is wrapped as an entry,
// appended to the tail of its price's bucket (created if absent) and
// indexed by id.
func (b *OrderBook) AddOrder(o *Order) *Entry {
	e := &Entry{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Price:      o.Price,
		Side:       o.Side,
		Remaining:  o.Remaining,
		Kind:       o.Kind,
		EnqueuedAt: o.CreateTime,
	}
	tree := b.side(o.Side)
	probe := &PriceBucket{Price: o.Price}
	bucket, ok := tree.Get(probe)
	if !ok {
		bucket = NewPriceBucket(o.Price)
		tree.ReplaceOrInsert(bucket)
	}
	bucket.Add(e)
	b.index[o.ID] = e
	return e
}

// CancelOrder removes a resting order by id, dropping its bucket if that
// leaves the level empty. The second return is false when the id is not
// resting; callers treat that as an idempotent no-op.
func (b *OrderBook) CancelOrder(id uint64) (*Entry, bool) {
	e, ok := b.index[id]
	if !ok {
		return nil, false
	}
	delete(b.index, id)

	tree := b.side(e.Side)
	bucket := e.bucket
	bucket.Remove(e)
	if bucket.Empty() {
		tree.Delete(bucket)
	}
	return e, true
}

// Lookup returns the resting entry for an order id.
func (b *OrderBook) Lookup(id uint64) (*Entry, bool) {
	e, ok := b.index[id]
	return e, ok
}

// BestBid returns the highest-priced bid bucket.
func (b *OrderBook) BestBid() (*PriceBucket, bool) { return b.bids.Min() }

// BestAsk returns the lowest-priced ask bucket.
func (b *OrderBook) BestAsk() (*PriceBucket, bool) { return b.asks.Min() }

// Best returns the best bucket on the given side.
func (b *OrderBook) Best(s Side) (*PriceBucket, bool) { return b.side(s).Min() }

// Walk visits the side's buckets best price first until fn returns false.
func (b *OrderBook) Walk(s Side, fn func(*PriceBucket) bool) {
	b.side(s).Ascend(fn)
}

// FillBest applies qty against the head entry of the best bucket on side s,
// unindexing the entry once fully filled and dropping the level once empty.
// The caller must have bounded qty by the head's remaining quantity.
func (b *OrderBook) FillBest(s Side, qty decimal.Decimal) {
	bucket, ok := b.Best(s)
	if !ok {
		panic("orderbook: fill on empty side")
	}
	head := bucket.Head()
	drained := head.Remaining.Equal(qty)
	empty := bucket.ApplyFill(qty)
	if drained {
		delete(b.index, head.OrderID)
	}
	if empty {
		b.side(s).Delete(bucket)
	}
}

// LevelVolume returns the aggregate resting volume at (side, price), or
// zero/false when the level no longer exists. Delta generation uses the
// false case to signal deletion of the level downstream.
func (b *OrderBook) LevelVolume(s Side, price decimal.Decimal) (decimal.Decimal, bool) {
	bucket, ok := b.side(s).Get(&PriceBucket{Price: price})
	if !ok || bucket.Empty() {
		return decimal.Zero, false
	}
	return bucket.TotalVolume, true
}

// LastOffset is the watermark of the last fully applied input.
func (b *OrderBook) LastOffset() int64 { return b.lastOffset }

// AdvanceOffset moves the watermark forward. An offset at or below the
// watermark is a duplicate delivery and is rejected.
func (b *OrderBook) AdvanceOffset(n int64) error {
	if n <= b.lastOffset {
		return ErrOffsetRegression
	}
	b.lastOffset = n
	return nil
}

// Orders returns the number of resting orders.
func (b *OrderBook) Orders() int { return len(b.index) }

// Depth returns the top n non-empty levels per side: bids best (highest)
// first, asks best (lowest) first. Read-only.
func (b *OrderBook) Depth(n int) (bids, asks []Level) {
	collect := func(tree *btree.BTreeG[*PriceBucket]) []Level {
		levels := make([]Level, 0, n)
		tree.Ascend(func(bucket *PriceBucket) bool {
			if bucket.Empty() {
				return true
			}
			levels = append(levels, Level{Price: bucket.Price, Volume: bucket.TotalVolume})
			return len(levels) < n
		})
		return levels
	}
	if n <= 0 {
		return nil, nil
	}
	return collect(b.bids), collect(b.asks)
}
