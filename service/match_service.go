// Package service wires instruments to their matching workers: one
// consumer, one worker, one book per instrument, with snapshot-based
// recovery on startup and periodic snapshots while running.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"exmatch/config"
	"exmatch/domain/matching"
	"exmatch/domain/orderbook"
	"exmatch/infra/kafka"
	"exmatch/infra/snapstore"
)

// MatchService runs the matching pipeline for every configured
// instrument. Start order is recovery first, then consumers: no live
// traffic reaches a book before its snapshot is restored and the
// consumer is positioned just past the snapshot's watermark.
type MatchService struct {
	cfg   *config.Config
	store *snapstore.Store
	pub   Publisher
	log   zerolog.Logger

	workers   map[string]*Worker
	consumers []*kafka.Consumer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMatchService(cfg *config.Config, store *snapstore.Store, pub Publisher, log zerolog.Logger) *MatchService {
	return &MatchService{
		cfg:     cfg,
		store:   store,
		pub:     pub,
		log:     log,
		workers: make(map[string]*Worker, len(cfg.Instruments)),
	}
}

// Worker returns the worker for an instrument, if configured.
func (s *MatchService) Worker(symbol string) (*Worker, bool) {
	w, ok := s.workers[symbol]
	return w, ok
}

// Instruments lists the symbols this service runs.
func (s *MatchService) Instruments() []string {
	symbols := make([]string, 0, len(s.workers))
	for sym := range s.workers {
		symbols = append(symbols, sym)
	}
	return symbols
}

func (s *MatchService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, ic := range s.cfg.Instruments {
		inst := ic.ToInstrument()

		book, tradeID := RecoverBook(s.store, inst.Symbol, s.cfg.Node.ID, s.log)
		engine := matching.NewEngine(book, inst, tradeID)

		w := NewWorker(inst, engine, s.cfg.Node.ID,
			s.cfg.Queue.Inbound, s.cfg.Queue.Outbound, s.pub, s.log)
		w.Start()
		s.workers[inst.Symbol] = w

		consumer, err := kafka.NewConsumer(s.cfg.Kafka.Brokers, s.cfg.Kafka.OrdersTopic,
			inst.Partition, book.LastOffset()+1, s.log)
		if err != nil {
			s.cancel()
			return fmt.Errorf("consumer for %s: %w", inst.Symbol, err)
		}
		s.consumers = append(s.consumers, consumer)

		s.wg.Add(1)
		go func(c *kafka.Consumer, w *Worker, symbol string) {
			defer s.wg.Done()
			defer w.CloseInbound()
			if err := c.Run(ctx, w.Inbound()); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Str("instrument", symbol).Msg("consumer stopped")
			}
		}(consumer, w, inst.Symbol)
	}
	return nil
}

// Stop drains the pipeline in dependency order: stop consumers, let each
// worker finish its queued commands, then flush outbound results.
func (s *MatchService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	for _, c := range s.consumers {
		if err := c.Close(); err != nil {
			s.log.Warn().Err(err).Msg("consumer close")
		}
	}
	s.wg.Wait()
	for _, w := range s.workers {
		w.Wait()
	}
}

// SnapshotAll captures and persists a snapshot for every instrument.
func (s *MatchService) SnapshotAll(ctx context.Context, keep int) {
	for symbol, w := range s.workers {
		rec, err := w.Snapshot(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("instrument", symbol).Msg("snapshot capture failed")
			continue
		}
		if err := s.store.Save(rec); err != nil {
			s.log.Error().Err(err).Str("instrument", symbol).Msg("snapshot save failed")
			continue
		}
		if err := s.store.Prune(symbol, s.cfg.Node.ID, keep); err != nil {
			s.log.Warn().Err(err).Str("instrument", symbol).Msg("snapshot prune failed")
		}
		s.log.Info().Str("instrument", symbol).
			Int64("offset", rec.LastOffset).Msg("snapshot saved")
	}
}

// Depth proxies a depth read to the instrument's worker.
func (s *MatchService) Depth(ctx context.Context, symbol string, n int) (bids, asks []orderbook.Level, err error) {
	w, ok := s.workers[symbol]
	if !ok {
		return nil, nil, fmt.Errorf("unknown instrument %s", symbol)
	}
	return w.Depth(ctx, n)
}
