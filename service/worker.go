package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"exmatch/domain/instrument"
	"exmatch/domain/matching"
	"exmatch/domain/orderbook"
	"exmatch/infra/kafka"
	"exmatch/infra/snapstore"
	"exmatch/protocol"
)

// Publisher drains matching results. Publish errors are the publisher's to
// retry; the worker only sees them through its own retry loop.
type Publisher interface {
	Publish(*matching.Result) error
}

const publishBackoffCap = 5 * time.Second

type depthReply struct {
	bids, asks []orderbook.Level
}

type controlMsg struct {
	snapshot chan snapshotReply
	depth    int
	depthCh  chan depthReply
}

type snapshotReply struct {
	rec snapstore.Record
	err error
}

// Worker owns one instrument end to end: it is the only goroutine that
// ever touches the instrument's book and engine. Commands come in offset
// order through inbound; results leave through a bounded outbound queue
// drained by the publish loop. Snapshot capture and depth reads are
// control messages on the same loop, which is what makes them consistent
// without locks.
type Worker struct {
	inst     instrument.Instrument
	engine   *matching.Engine
	nodeID   int
	inbound  chan kafka.Inbound
	outbound chan *matching.Result
	control  chan controlMsg

	publisher Publisher
	log       zerolog.Logger

	matchDone   chan struct{}
	publishDone chan struct{}
}

func NewWorker(inst instrument.Instrument, engine *matching.Engine, nodeID int,
	inboundSize, outboundSize int, publisher Publisher, log zerolog.Logger) *Worker {
	return &Worker{
		inst:        inst,
		engine:      engine,
		nodeID:      nodeID,
		inbound:     make(chan kafka.Inbound, inboundSize),
		outbound:    make(chan *matching.Result, outboundSize),
		control:     make(chan controlMsg),
		publisher:   publisher,
		log:         log.With().Str("instrument", inst.Symbol).Logger(),
		matchDone:   make(chan struct{}),
		publishDone: make(chan struct{}),
	}
}

// Inbound is the ordered command queue feeding this worker.
func (w *Worker) Inbound() chan<- kafka.Inbound { return w.inbound }

// CloseInbound signals that no further commands will arrive. Call only
// after the consumer feeding Inbound has stopped.
func (w *Worker) CloseInbound() { close(w.inbound) }

func (w *Worker) Start() {
	go w.matchLoop()
	go w.publishLoop()
}

// Wait blocks until in-flight commands are processed and all pending
// results are flushed.
func (w *Worker) Wait() {
	<-w.matchDone
	<-w.publishDone
}

func (w *Worker) matchLoop() {
	defer close(w.outbound)
	defer close(w.matchDone)
	defer func() {
		// An invariant violation (negative remainder, fill on an empty
		// side) means the book is corrupt. Stop this instrument rather
		// than continue from bad state; other instruments are unaffected.
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("invariant violation, stopping instrument")
		}
	}()

	for {
		select {
		case msg, ok := <-w.inbound:
			if !ok {
				return
			}
			w.handle(msg)
		case ctl := <-w.control:
			w.handleControl(ctl)
		}
	}
}

func (w *Worker) handle(msg kafka.Inbound) {
	book := w.engine.Book()

	cmd, err := protocol.DecodeCommand(msg.Value, msg.Offset)
	if err != nil {
		// Malformed input is rejected whole, but the watermark still
		// advances so the stream is not stalled.
		w.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("rejected malformed command")
		if aerr := book.AdvanceOffset(msg.Offset); aerr != nil {
			w.log.Debug().Int64("offset", msg.Offset).Msg("stale offset on malformed command")
		}
		return
	}
	if cmd.Instrument != w.inst.Symbol {
		w.log.Warn().Str("got", cmd.Instrument).Int64("offset", msg.Offset).
			Msg("misrouted command")
		if aerr := book.AdvanceOffset(msg.Offset); aerr != nil {
			w.log.Debug().Int64("offset", msg.Offset).Msg("stale offset on misrouted command")
		}
		return
	}

	var res *matching.Result
	switch cmd.Kind {
	case protocol.KindNew:
		var order *orderbook.Order
		order, err = cmd.ToOrder()
		if err == nil {
			res, err = w.engine.ProcessNew(order, cmd.Offset)
		}
	case protocol.KindCancel:
		res, err = w.engine.ProcessCancel(cmd.OrderID, cmd.Offset, cmd.Timestamp)
	}
	if err != nil {
		if errors.Is(err, orderbook.ErrOffsetRegression) {
			// Duplicate delivery: already applied, never reapply.
			w.log.Debug().Int64("offset", cmd.Offset).Msg("ignored duplicate offset")
			return
		}
		w.log.Error().Err(err).Int64("offset", cmd.Offset).Msg("command failed")
		return
	}

	// Blocking send: a full outbound queue slows matching down instead of
	// dropping results.
	w.outbound <- res
}

func (w *Worker) handleControl(ctl controlMsg) {
	if ctl.snapshot != nil {
		payload, err := w.engine.Book().Snapshot()
		ctl.snapshot <- snapshotReply{
			rec: snapstore.Record{
				Instrument: w.inst.Symbol,
				NodeID:     w.nodeID,
				CreatedAt:  time.Now().UnixMilli(),
				LastOffset: w.engine.Book().LastOffset(),
				TradeID:    w.engine.LastTradeID(),
				Payload:    payload,
			},
			err: err,
		}
	}
	if ctl.depthCh != nil {
		bids, asks := w.engine.Book().Depth(ctl.depth)
		ctl.depthCh <- depthReply{bids: bids, asks: asks}
	}
}

// Snapshot captures a consistent point-in-time image of the book by
// running on the matching goroutine between commands.
func (w *Worker) Snapshot(ctx context.Context) (snapstore.Record, error) {
	reply := make(chan snapshotReply, 1)
	select {
	case w.control <- controlMsg{snapshot: reply}:
	case <-w.matchDone:
		return snapstore.Record{}, ErrWorkerStopped
	case <-ctx.Done():
		return snapstore.Record{}, ctx.Err()
	}
	r := <-reply
	return r.rec, r.err
}

// Depth reads the top n levels per side off the matching goroutine.
func (w *Worker) Depth(ctx context.Context, n int) (bids, asks []orderbook.Level, err error) {
	reply := make(chan depthReply, 1)
	select {
	case w.control <- controlMsg{depth: n, depthCh: reply}:
	case <-w.matchDone:
		return nil, nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	r := <-reply
	return r.bids, r.asks, nil
}

// publishLoop drains results in order. A failed publish is retried with
// capped backoff; matching keeps running behind the bounded queue.
func (w *Worker) publishLoop() {
	defer close(w.publishDone)

	for res := range w.outbound {
		backoff := 100 * time.Millisecond
		for {
			err := w.publisher.Publish(res)
			if err == nil {
				break
			}
			w.log.Warn().Err(err).Int64("offset", res.Offset).
				Dur("retry_in", backoff).Msg("publish failed")
			time.Sleep(backoff)
			if backoff *= 2; backoff > publishBackoffCap {
				backoff = publishBackoffCap
			}
		}
	}
}
