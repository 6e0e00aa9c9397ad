package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
	"github.com/rl1809/catalog-fulfillment/internal/pkg/telemetry"
	"github.com/rl1809/catalog-fulfillment/internal/port"
)

const notifyTimeout = 5 * time.Second

// Notifier fans committed reservations out to the stock mirror and the event
// publisher. Either sink may be nil. Failures are logged and counted only:
// the stock change they describe is already durable.
type Notifier struct {
	cache     port.CacheRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

func NewNotifier(cache port.CacheRepository, publisher port.EventPublisher, logger *zap.Logger, metrics *telemetry.Metrics) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run drains queue until it is closed.
func (n *Notifier) Run(id int, queue <-chan domain.StockReservedEvent) {
	logger := n.logger.With(zap.Int("worker", id))
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		n.handle(ctx, logger, event)
		cancel()
	}
}

func (n *Notifier) handle(ctx context.Context, logger *zap.Logger, event domain.StockReservedEvent) {
	logger = logger.With(zap.String("request_id", event.RequestID))

	if n.cache != nil {
		outcome := "ok"
		for _, line := range event.Lines {
			if err := n.cache.SetStock(ctx, line.ProductID, line.NewStock, event.OccurredAt); err != nil {
				outcome = "error"
				logger.Error("mirror stock to cache",
					zap.Int64("product_id", line.ProductID),
					zap.Int("new_stock", line.NewStock),
					zap.Error(err),
				)
			}
		}
		n.metrics.ObserveNotification("cache", outcome)
	}

	if n.publisher != nil {
		if err := n.publisher.PublishStockReserved(ctx, event); err != nil {
			n.metrics.ObserveNotification("publisher", "error")
			logger.Error("publish stock reserved event", zap.Error(err))
			return
		}
		n.metrics.ObserveNotification("publisher", "ok")
	}

	logger.Debug("stock reserved event delivered", zap.Int("product_count", len(event.Lines)))
}
