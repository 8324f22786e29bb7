package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func limit(id, user uint64, side Side, price, qty string) *Order {
	return &Order{
		ID:         id,
		UserID:     user,
		Instrument: "BTC-USDT",
		Kind:       Limit,
		Side:       side,
		Price:      dec(price),
		Quantity:   dec(qty),
		Remaining:  dec(qty),
		CreateTime: 1700000000000,
	}
}

func TestNewBookStartsBeforeFirstOffset(t *testing.T) {
	b := New("BTC-USDT")
	if got := b.LastOffset(); got != -1 {
		t.Fatalf("LastOffset = %d, want -1", got)
	}
	if err := b.AdvanceOffset(0); err != nil {
		t.Fatalf("AdvanceOffset(0) on fresh book: %v", err)
	}
}

func TestAdvanceOffsetRejectsRegression(t *testing.T) {
	b := New("BTC-USDT")
	if err := b.AdvanceOffset(5); err != nil {
		t.Fatal(err)
	}
	if err := b.AdvanceOffset(5); err != ErrOffsetRegression {
		t.Fatalf("same offset: got %v, want ErrOffsetRegression", err)
	}
	if err := b.AdvanceOffset(3); err != ErrOffsetRegression {
		t.Fatalf("lower offset: got %v, want ErrOffsetRegression", err)
	}
	if got := b.LastOffset(); got != 5 {
		t.Fatalf("watermark moved on rejected offset: %d", got)
	}
}

func TestBestSidesAreIndependent(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Buy, "100", "1"))
	b.AddOrder(limit(2, 10, Buy, "101", "1"))
	b.AddOrder(limit(3, 11, Sell, "103", "1"))
	b.AddOrder(limit(4, 11, Sell, "102", "1"))

	bid, ok := b.BestBid()
	if !ok || !bid.Price.Equal(dec("101")) {
		t.Fatalf("best bid = %v, want 101", bid)
	}
	ask, ok := b.BestAsk()
	if !ok || !ask.Price.Equal(dec("102")) {
		t.Fatalf("best ask = %v, want 102", ask)
	}
}

func TestCancelOrderDropsEmptyLevel(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Buy, "100", "2"))

	e, ok := b.CancelOrder(1)
	if !ok {
		t.Fatal("cancel of resting order failed")
	}
	if !e.Price.Equal(dec("100")) {
		t.Fatalf("cancelled entry price = %s", e.Price)
	}
	if _, ok := b.BestBid(); ok {
		t.Fatal("empty level should have been removed")
	}
	if b.Orders() != 0 {
		t.Fatalf("index not cleaned, %d orders left", b.Orders())
	}
}

func TestCancelUnknownOrderIsNoOp(t *testing.T) {
	b := New("BTC-USDT")
	if _, ok := b.CancelOrder(42); ok {
		t.Fatal("cancel of unknown id should report not found")
	}
}

func TestFillBestDrainsHeadAndLevel(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Sell, "100", "2"))
	b.AddOrder(limit(2, 11, Sell, "100", "3"))

	b.FillBest(Sell, dec("2"))
	if _, ok := b.Lookup(1); ok {
		t.Fatal("drained order still indexed")
	}
	vol, ok := b.LevelVolume(Sell, dec("100"))
	if !ok || !vol.Equal(dec("3")) {
		t.Fatalf("level volume = %s, want 3", vol)
	}

	b.FillBest(Sell, dec("3"))
	if _, ok := b.BestAsk(); ok {
		t.Fatal("empty level should have been removed")
	}
}

func TestFillBestPartialKeepsPriority(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Sell, "100", "5"))
	b.AddOrder(limit(2, 11, Sell, "100", "5"))

	b.FillBest(Sell, dec("2"))

	bucket, _ := b.BestAsk()
	head := bucket.Head()
	if head.OrderID != 1 {
		t.Fatalf("partially filled head lost priority, head = %d", head.OrderID)
	}
	if !head.Remaining.Equal(dec("3")) {
		t.Fatalf("head remaining = %s, want 3", head.Remaining)
	}
	if !bucket.TotalVolume.Equal(dec("8")) {
		t.Fatalf("bucket volume = %s, want 8", bucket.TotalVolume)
	}
}

func TestFillBestPanicsOnEmptySide(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New("BTC-USDT").FillBest(Buy, dec("1"))
}

func TestWalkVisitsBestFirst(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Buy, "99", "1"))
	b.AddOrder(limit(2, 10, Buy, "101", "1"))
	b.AddOrder(limit(3, 10, Buy, "100", "1"))

	var prices []string
	b.Walk(Buy, func(bucket *PriceBucket) bool {
		prices = append(prices, bucket.Price.String())
		return true
	})
	want := []string{"101", "100", "99"}
	for i := range want {
		if prices[i] != want[i] {
			t.Fatalf("walk order %v, want %v", prices, want)
		}
	}
}

func TestDepthOrderingAndLimit(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Buy, "99", "1"))
	b.AddOrder(limit(2, 10, Buy, "100", "2"))
	b.AddOrder(limit(3, 10, Buy, "98", "3"))
	b.AddOrder(limit(4, 11, Sell, "101", "1"))
	b.AddOrder(limit(5, 11, Sell, "102", "2"))

	bids, asks := b.Depth(2)
	if len(bids) != 2 || len(asks) != 2 {
		t.Fatalf("depth sizes = %d/%d, want 2/2", len(bids), len(asks))
	}
	if !bids[0].Price.Equal(dec("100")) || !bids[1].Price.Equal(dec("99")) {
		t.Fatalf("bids out of order: %v", bids)
	}
	if !asks[0].Price.Equal(dec("101")) || !asks[1].Price.Equal(dec("102")) {
		t.Fatalf("asks out of order: %v", asks)
	}
}

func TestLevelVolumeMissingLevel(t *testing.T) {
	b := New("BTC-USDT")
	vol, ok := b.LevelVolume(Buy, dec("100"))
	if ok || !vol.IsZero() {
		t.Fatalf("missing level reported (%s, %v)", vol, ok)
	}
}
