package port

import (
	"context"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

type EventPublisher interface {
	PublishStockReserved(ctx context.Context, event domain.StockReservedEvent) error
	Close() error
}
