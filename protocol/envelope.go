package protocol

import "encoding/json"

// Message types carried in outbound envelopes.
const (
	TypeTradeFill   = "TRADE_RESULT"
	TypePublicTrade = "PUBLIC_TRADE"
	TypeBookUpdate  = "ORDER_BOOK_UPDATE"
)

// Envelope wraps every outbound message. MessageID is the consumer-side
// deduplication key; consumers that see a repeated id drop the message.
type Envelope struct {
	MessageID string          `json:"messageId"`
	Topic     string          `json:"topic"`
	Partition int32           `json:"partition"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func NewEnvelope(messageID, topic string, partition int32, typ string, data any, ts int64) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		MessageID: messageID,
		Topic:     topic,
		Partition: partition,
		Type:      typ,
		Data:      raw,
		Timestamp: ts,
	}, nil
}

func (e *Envelope) Encode() ([]byte, error) { return json.Marshal(e) }

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
