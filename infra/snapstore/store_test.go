package snapstore

import (
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(symbol string, node int, createdAt, offset int64) Record {
	return Record{
		Instrument: symbol,
		NodeID:     node,
		CreatedAt:  createdAt,
		LastOffset: offset,
		TradeID:    uint64(offset) * 2,
		Payload:    []byte("book-image"),
	}
}

func TestLatestOfEmptyStore(t *testing.T) {
	s := openTestStore(t)
	if _, ok, err := s.Latest("BTC-USDT", 0); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
}

func TestLatestPicksNewest(t *testing.T) {
	s := openTestStore(t)
	for i := int64(1); i <= 3; i++ {
		if err := s.Save(rec("BTC-USDT", 0, 1000*i, 10*i)); err != nil {
			t.Fatal(err)
		}
	}

	got, ok, err := s.Latest("BTC-USDT", 0)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.CreatedAt != 3000 || got.LastOffset != 30 || got.TradeID != 60 {
		t.Fatalf("latest = %+v", got)
	}
	if string(got.Payload) != "book-image" {
		t.Fatalf("payload = %q", got.Payload)
	}
}

func TestLatestIsScopedPerInstrumentAndNode(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(rec("BTC-USDT", 0, 1000, 10)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(rec("ETH-USDT", 0, 9000, 90)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(rec("BTC-USDT", 1, 8000, 80)); err != nil {
		t.Fatal(err)
	}

	got, ok, _ := s.Latest("BTC-USDT", 0)
	if !ok || got.LastOffset != 10 {
		t.Fatalf("latest crossed scope boundaries: %+v", got)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	s := openTestStore(t)
	for i := int64(1); i <= 5; i++ {
		if err := s.Save(rec("BTC-USDT", 0, 1000*i, 10*i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Prune("BTC-USDT", 0, 2); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Latest("BTC-USDT", 0)
	if err != nil || !ok || got.CreatedAt != 5000 {
		t.Fatalf("newest lost by prune: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestPruneRejectsNonPositiveKeep(t *testing.T) {
	s := openTestStore(t)
	if err := s.Prune("BTC-USDT", 0, 0); err == nil {
		t.Fatal("expected error for keep=0")
	}
}

func TestReopenSeesSavedSnapshots(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(rec("BTC-USDT", 0, 1000, 10)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, ok, err := s2.Latest("BTC-USDT", 0)
	if err != nil || !ok || got.LastOffset != 10 {
		t.Fatalf("after reopen: %+v ok=%v err=%v", got, ok, err)
	}
}
