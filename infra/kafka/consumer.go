// Package kafka holds the engine's two message-log edges: a
// partition-assigned consumer feeding each instrument's worker in offset
// order, and the publisher pushing results back out.
package kafka

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Inbound is one raw record of an instrument's command stream. Decoding
// happens on the matching worker so malformed payloads still advance the
// watermark.
type Inbound struct {
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp int64
}

// Consumer reads exactly one partition of the orders topic. Each
// instrument gets its own consumer, so per-instrument delivery order is
// the log's offset order.
type Consumer struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

// NewConsumer assigns the reader to a fixed partition and seeks to
// startOffset. Recovery passes lastProcessedOffset+1 here; kafka.FirstOffset
// replays from the beginning.
func NewConsumer(brokers []string, topic string, partition int, startOffset int64, log zerolog.Logger) (*Consumer, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	if err := r.SetOffset(startOffset); err != nil {
		_ = r.Close()
		return nil, err
	}
	return &Consumer{reader: r, log: log}, nil
}

// Run fetches records and hands them to the worker queue until ctx is
// canceled. The blocking channel send is the backpressure path: a slow
// worker slows the fetch loop, nothing is dropped.
func (c *Consumer) Run(ctx context.Context, out chan<- Inbound) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		rec := Inbound{
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Timestamp: msg.Time.UnixMilli(),
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
