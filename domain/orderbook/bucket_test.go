package orderbook

import "testing"

func entry(id uint64, qty string) *Entry {
	return &Entry{OrderID: id, UserID: id, Price: dec("100"), Side: Sell, Remaining: dec(qty)}
}

func TestBucketFIFO(t *testing.T) {
	b := NewPriceBucket(dec("100"))
	b.Add(entry(1, "1"))
	b.Add(entry(2, "2"))
	b.Add(entry(3, "3"))

	var ids []uint64
	for e := b.Head(); e != nil; e = e.Next() {
		ids = append(ids, e.OrderID)
	}
	want := []uint64{1, 2, 3}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("queue order %v, want %v", ids, want)
		}
	}
	if !b.TotalVolume.Equal(dec("6")) {
		t.Fatalf("TotalVolume = %s, want 6", b.TotalVolume)
	}
}

func TestBucketRemoveMiddle(t *testing.T) {
	b := NewPriceBucket(dec("100"))
	first := entry(1, "1")
	mid := entry(2, "2")
	last := entry(3, "3")
	b.Add(first)
	b.Add(mid)
	b.Add(last)

	if !b.Remove(mid) {
		t.Fatal("remove of member entry failed")
	}
	if b.Len() != 2 || !b.TotalVolume.Equal(dec("4")) {
		t.Fatalf("after remove: len=%d vol=%s", b.Len(), b.TotalVolume)
	}
	if b.Head() != first || first.Next() != last {
		t.Fatal("queue links broken after middle removal")
	}

	if b.Remove(mid) {
		t.Fatal("second remove of same entry should fail")
	}
}

func TestBucketRemoveHeadAndTail(t *testing.T) {
	b := NewPriceBucket(dec("100"))
	first := entry(1, "1")
	last := entry(2, "2")
	b.Add(first)
	b.Add(last)

	b.Remove(first)
	if b.Head() != last {
		t.Fatal("head not advanced")
	}
	b.Remove(last)
	if !b.Empty() || b.Head() != nil {
		t.Fatal("bucket should be empty")
	}
	if !b.TotalVolume.IsZero() {
		t.Fatalf("TotalVolume = %s, want 0", b.TotalVolume)
	}
}

func TestApplyFillPartialThenDrain(t *testing.T) {
	b := NewPriceBucket(dec("100"))
	b.Add(entry(1, "5"))

	if empty := b.ApplyFill(dec("2")); empty {
		t.Fatal("bucket reported empty after partial fill")
	}
	if !b.Head().Remaining.Equal(dec("3")) {
		t.Fatalf("head remaining = %s, want 3", b.Head().Remaining)
	}

	if empty := b.ApplyFill(dec("3")); !empty {
		t.Fatal("bucket should be empty after draining its only entry")
	}
}

func TestApplyFillPanicsBeyondHeadRemainder(t *testing.T) {
	b := NewPriceBucket(dec("100"))
	b.Add(entry(1, "1"))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	b.ApplyFill(dec("2"))
}

func TestApplyFillPanicsOnEmptyBucket(t *testing.T) {
	b := NewPriceBucket(dec("100"))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	b.ApplyFill(dec("1"))
}
