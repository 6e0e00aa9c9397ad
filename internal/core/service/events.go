package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

// Events returns the queue of committed reservations, or nil when events
// are disabled.
func (s *OrderService) Events() <-chan domain.StockReservedEvent {
	return s.events
}

// Close closes the event queue. Call it only after every in-flight
// ProcessOrder has returned.
func (s *OrderService) Close() {
	if s.events != nil {
		close(s.events)
	}
}

// enqueue hands the event to the notification workers. The stock change is
// already committed, so a request context that ends first only drops the event.
func (s *OrderService) enqueue(ctx context.Context, logger *zap.Logger, event domain.StockReservedEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- event:
	case <-ctx.Done():
		s.metrics.ObserveNotification("queue", "dropped")
		logger.Warn("stock reserved event dropped", zap.Error(ctx.Err()))
	}
}
