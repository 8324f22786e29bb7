package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"exmatch/domain/matching"
	"exmatch/protocol"
)

// Topics names the destinations of the three outbound streams.
type Topics struct {
	Trades    string // public prints
	Book      string // book deltas
	UserTasks string // per-user fills
}

// Partitioner maps a user id to its user-tasks partition.
type Partitioner func(userID uint64) int32

// Publisher fans one matching result out into enveloped Kafka messages.
// It runs on its own goroutine behind a bounded queue; the matching
// worker never waits on the broker beyond that queue filling up.
type Publisher struct {
	producer  sarama.SyncProducer
	topics    Topics
	partition Partitioner
	log       zerolog.Logger
}

func NewPublisher(brokers []string, topics Topics, partition Partitioner, log zerolog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewManualPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: start producer: %w", err)
	}
	return &Publisher{producer: producer, topics: topics, partition: partition, log: log}, nil
}

// Publish sends every message a result produced. Messages carry dedup ids,
// so a retry after partial success cannot double-apply downstream.
func (p *Publisher) Publish(res *matching.Result) error {
	if res.Taker != nil {
		if err := p.sendFill(*res.Taker); err != nil {
			return err
		}
	}
	for _, fill := range res.Makers {
		if err := p.sendFill(fill); err != nil {
			return err
		}
	}
	for _, print := range res.Prints {
		if err := p.sendPrint(print); err != nil {
			return err
		}
	}
	return p.sendUpdate(res.Update)
}

func (p *Publisher) sendFill(fill matching.TradeFill) error {
	partition := p.partition(fill.UserID)
	env, err := protocol.NewEnvelope(fill.DedupKey(), p.topics.UserTasks, partition,
		protocol.TypeTradeFill, fill, fill.Timestamp)
	if err != nil {
		return err
	}
	return p.send(env, sarama.StringEncoder(fmt.Sprintf("%d", fill.UserID)))
}

func (p *Publisher) sendPrint(print matching.PublicTrade) error {
	env, err := protocol.NewEnvelope(print.DedupKey(), p.topics.Trades, 0,
		protocol.TypePublicTrade, print, print.Timestamp)
	if err != nil {
		return err
	}
	return p.send(env, sarama.StringEncoder(print.Instrument))
}

func (p *Publisher) sendUpdate(update matching.BookUpdate) error {
	env, err := protocol.NewEnvelope(update.DedupKey(), p.topics.Book, 0,
		protocol.TypeBookUpdate, update, update.Timestamp)
	if err != nil {
		return err
	}
	return p.send(env, sarama.StringEncoder(update.Instrument))
}

func (p *Publisher) send(env *protocol.Envelope, key sarama.Encoder) error {
	value, err := env.Encode()
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:     env.Topic,
		Partition: env.Partition,
		Key:       key,
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.UnixMilli(env.Timestamp),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: publish %s to %s: %w", env.Type, env.Topic, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.producer.Close() }
