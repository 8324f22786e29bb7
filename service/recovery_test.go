package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"exmatch/domain/orderbook"
	"exmatch/infra/snapstore"
)

func openStore(t *testing.T) *snapstore.Store {
	t.Helper()
	store, err := snapstore.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecoverBookWithoutSnapshotStartsEmpty(t *testing.T) {
	store := openStore(t)
	book, tradeID := RecoverBook(store, "BTC-USDT", 0, zerolog.Nop())
	if book.Orders() != 0 || book.LastOffset() != -1 || tradeID != 0 {
		t.Fatalf("fresh book: orders=%d offset=%d tradeID=%d",
			book.Orders(), book.LastOffset(), tradeID)
	}
}

func TestRecoverBookFromSnapshot(t *testing.T) {
	store := openStore(t)

	src := orderbook.New("BTC-USDT")
	qty := decimal.NewFromInt(3)
	src.AddOrder(&orderbook.Order{
		ID: 1, UserID: 10, Kind: orderbook.Limit, Side: orderbook.Buy,
		Price: decimal.NewFromInt(100), Quantity: qty, Remaining: qty,
	})
	if err := src.AdvanceOffset(40); err != nil {
		t.Fatal(err)
	}
	payload, err := src.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	err = store.Save(snapstore.Record{
		Instrument: "BTC-USDT",
		NodeID:     0,
		CreatedAt:  time.Now().UnixMilli(),
		LastOffset: 40,
		TradeID:    7,
		Payload:    payload,
	})
	if err != nil {
		t.Fatal(err)
	}

	book, tradeID := RecoverBook(store, "BTC-USDT", 0, zerolog.Nop())
	if book.LastOffset() != 40 {
		t.Fatalf("offset = %d, want 40", book.LastOffset())
	}
	if tradeID != 7 {
		t.Fatalf("trade id = %d, want 7", tradeID)
	}
	if _, ok := book.Lookup(1); !ok {
		t.Fatal("resting order lost across recovery")
	}
}

func TestRecoverBookFallsBackOnCorruptSnapshot(t *testing.T) {
	store := openStore(t)
	err := store.Save(snapstore.Record{
		Instrument: "BTC-USDT",
		NodeID:     0,
		CreatedAt:  time.Now().UnixMilli(),
		Payload:    []byte("garbage"),
	})
	if err != nil {
		t.Fatal(err)
	}

	book, tradeID := RecoverBook(store, "BTC-USDT", 0, zerolog.Nop())
	if book.Orders() != 0 || book.LastOffset() != -1 || tradeID != 0 {
		t.Fatal("corrupt snapshot must fall back to an empty book")
	}
}
