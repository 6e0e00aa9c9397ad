package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes a key so the request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// SetStock mirrors the stock committed at `at` for catalog reads; older
	// writes must not overwrite newer ones
	SetStock(ctx context.Context, productID int64, stock int, at time.Time) error
}
