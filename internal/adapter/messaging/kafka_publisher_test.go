package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func sampleEvent() domain.StockReservedEvent {
	return domain.StockReservedEvent{
		RequestID: "req-1",
		Lines: []domain.LineResult{
			{ProductID: 1, NewStock: 8},
			{ProductID: 2, NewStock: 0},
		},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishStockReserved_Payload(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w)

	if err := p.PublishStockReserved(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "req-1" {
		t.Errorf("expected key req-1, got %q", msg.Key)
	}

	var got stockReservedPayload
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.RequestID != "req-1" || len(got.Lines) != 2 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Lines[0].ProductID != 1 || got.Lines[0].NewStock != 8 {
		t.Errorf("unexpected first line: %+v", got.Lines[0])
	}
	if got.Lines[1].ProductID != 2 || got.Lines[1].NewStock != 0 {
		t.Errorf("unexpected second line: %+v", got.Lines[1])
	}
}

func TestPublishStockReserved_InjectsTraceContext(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w)
	p.propagator = propagation.TraceContext{}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if err := p.PublishStockReserved(ctx, sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	carrier := headerCarrier{msg: &w.msgs[0]}
	want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if got := carrier.Get("traceparent"); got != want {
		t.Errorf("expected traceparent %q, got %q", want, got)
	}
}

func TestPublishStockReserved_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := newKafkaPublisher(w)

	err := p.PublishStockReserved(context.Background(), sampleEvent())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, w.err) {
		t.Errorf("expected wrapped writer error, got %v", err)
	}
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	msg := kafka.Message{}
	c := headerCarrier{msg: &msg}

	c.Set("k", "v1")
	c.Set("k", "v2")

	if len(msg.Headers) != 1 {
		t.Fatalf("expected 1 header, got %d", len(msg.Headers))
	}
	if c.Get("k") != "v2" {
		t.Errorf("expected v2, got %q", c.Get("k"))
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "k" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w)
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.closed {
		t.Error("expected writer to be closed")
	}
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	if err := p.PublishStockReserved(context.Background(), sampleEvent()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
