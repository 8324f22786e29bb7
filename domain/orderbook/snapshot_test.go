package orderbook

import (
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	b := New("BTC-USDT")
	b.AddOrder(limit(1, 10, Buy, "100", "2"))
	b.AddOrder(limit(2, 11, Buy, "100", "3")) // same level, behind order 1
	b.AddOrder(limit(3, 12, Buy, "99", "1"))
	b.AddOrder(limit(4, 13, Sell, "101", "4"))
	if err := b.AdvanceOffset(77); err != nil {
		t.Fatal(err)
	}

	data, err := b.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := Restore(data)
	if err != nil {
		t.Fatal(err)
	}

	if restored.Instrument() != "BTC-USDT" {
		t.Fatalf("instrument = %s", restored.Instrument())
	}
	if restored.LastOffset() != 77 {
		t.Fatalf("offset = %d, want 77", restored.LastOffset())
	}
	if restored.Orders() != 4 {
		t.Fatalf("orders = %d, want 4", restored.Orders())
	}

	bucket, ok := restored.BestBid()
	if !ok || !bucket.Price.Equal(dec("100")) {
		t.Fatalf("best bid after restore = %v", bucket)
	}
	if !bucket.TotalVolume.Equal(dec("5")) {
		t.Fatalf("level volume = %s, want 5", bucket.TotalVolume)
	}
	if bucket.Head().OrderID != 1 {
		t.Fatalf("time priority lost: head = %d", bucket.Head().OrderID)
	}

	e, ok := restored.Lookup(2)
	if !ok || !e.Remaining.Equal(dec("3")) {
		t.Fatal("index not rebuilt")
	}
}

func TestSnapshotOfEmptyBook(t *testing.T) {
	b := New("ETH-USDT")
	data, err := b.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := Restore(data)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Orders() != 0 || restored.LastOffset() != -1 {
		t.Fatalf("restored empty book: orders=%d offset=%d",
			restored.Orders(), restored.LastOffset())
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	if _, err := Restore([]byte("not a snapshot")); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("got %v, want ErrCorruptSnapshot", err)
	}
}
