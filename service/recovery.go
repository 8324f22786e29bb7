package service

import (
	"errors"

	"github.com/rs/zerolog"

	"exmatch/domain/orderbook"
	"exmatch/infra/snapstore"
)

// ErrWorkerStopped is returned when a control request races against the
// worker shutting down.
var ErrWorkerStopped = errors.New("worker stopped")

// RecoverBook loads the newest snapshot for an instrument and rebuilds the
// book from it. With no snapshot, or a corrupt one, it starts empty: the
// consumer then replays the whole command stream, which converges to the
// same state.
func RecoverBook(store *snapstore.Store, symbol string, nodeID int, log zerolog.Logger) (*orderbook.OrderBook, uint64) {
	rec, ok, err := store.Latest(symbol, nodeID)
	if err != nil {
		log.Error().Err(err).Str("instrument", symbol).Msg("snapshot lookup failed, starting empty")
		return orderbook.New(symbol), 0
	}
	if !ok {
		log.Info().Str("instrument", symbol).Msg("no snapshot, starting empty")
		return orderbook.New(symbol), 0
	}

	book, err := orderbook.Restore(rec.Payload)
	if err != nil {
		log.Warn().Err(err).Str("instrument", symbol).Int64("created_at", rec.CreatedAt).
			Msg("snapshot unusable, starting empty")
		return orderbook.New(symbol), 0
	}
	log.Info().Str("instrument", symbol).
		Int64("offset", book.LastOffset()).
		Uint64("trade_id", rec.TradeID).
		Msg("book restored from snapshot")
	return book, rec.TradeID
}
