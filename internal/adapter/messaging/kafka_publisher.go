package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

const DefaultStockReservedTopic = "inventory.stock-reserved"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type stockReservedLine struct {
	ProductID int64 `json:"product_id"`
	NewStock  int   `json:"new_stock"`
}

type stockReservedPayload struct {
	RequestID  string              `json:"request_id"`
	Lines      []stockReservedLine `json:"lines"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// KafkaPublisher writes StockReserved events keyed by request id, so every
// event of one request lands on the same partition.
type KafkaPublisher struct {
	writer     messageWriter
	propagator propagation.TextMapPropagator
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultStockReservedTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(w)
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, propagator: otel.GetTextMapPropagator()}
}

func (p *KafkaPublisher) PublishStockReserved(ctx context.Context, event domain.StockReservedEvent) error {
	payload := stockReservedPayload{
		RequestID:  event.RequestID,
		Lines:      make([]stockReservedLine, 0, len(event.Lines)),
		OccurredAt: event.OccurredAt.UTC(),
	}
	for _, l := range event.Lines {
		payload.Lines = append(payload.Lines, stockReservedLine{ProductID: l.ProductID, NewStock: l.NewStock})
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stock reserved event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RequestID),
		Value: value,
		Time:  event.OccurredAt,
	}
	p.propagator.Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write stock reserved event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to propagation.TextMapCarrier.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// NopPublisher discards events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStockReserved(context.Context, domain.StockReservedEvent) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
