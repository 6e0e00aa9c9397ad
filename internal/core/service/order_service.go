package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
	"github.com/rl1809/catalog-fulfillment/internal/pkg/logging"
	"github.com/rl1809/catalog-fulfillment/internal/pkg/telemetry"
	"github.com/rl1809/catalog-fulfillment/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

const (
	tracerName           = "github.com/rl1809/catalog-fulfillment/internal/core/service"
	idempotencyKeyPrefix = "order:"
	defaultTxRetries     = 3
)

type OrderService struct {
	uow       port.UnitOfWork
	cache     port.CacheRepository
	events    chan domain.StockReservedEvent
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	txRetries int
	now       func() time.Time
}

type Option func(*OrderService)

// WithCache enables the request idempotency guard of ProcessOrderOnce.
func WithCache(cache port.CacheRepository) Option {
	return func(s *OrderService) { s.cache = cache }
}

// WithEvents enables post-commit StockReservedEvents on a queue of queueSize.
func WithEvents(queueSize int) Option {
	return func(s *OrderService) {
		if queueSize > 0 {
			s.events = make(chan domain.StockReservedEvent, queueSize)
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *OrderService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *OrderService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithTxRetries sets how often a unit of work aborted by a lock conflict is retried.
func WithTxRetries(n int) Option {
	return func(s *OrderService) {
		if n >= 0 {
			s.txRetries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewOrderService(uow port.UnitOfWork, opts ...Option) *OrderService {
	s := &OrderService{
		uow:       uow,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		txRetries: defaultTxRetries,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessOrder reserves stock for every line or for none of them. On success
// it returns one result per distinct product, ascending by product id.
// Failures are domain.Failure values, or infrastructure errors.
// The order gets a generated request id for logs and events.
func (s *OrderService) ProcessOrder(ctx context.Context, lines []domain.OrderLine) ([]domain.LineResult, error) {
	return s.process(ctx, uuid.NewString(), lines)
}

// ProcessOrderOnce is ProcessOrder guarded by requestID: a request id that was
// already processed successfully, or is in flight, yields ErrDuplicateRequest.
// A failed attempt releases the id so the corrected order can be resubmitted.
func (s *OrderService) ProcessOrderOnce(ctx context.Context, requestID string, lines []domain.OrderLine) ([]domain.LineResult, error) {
	if requestID == "" {
		return s.ProcessOrder(ctx, lines)
	}
	if s.cache == nil {
		return s.process(ctx, requestID, lines)
	}

	key := idempotencyKeyPrefix + requestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		s.metrics.ObserveOrder("duplicate", 0, 0)
		return nil, ErrDuplicateRequest
	}

	results, err := s.process(ctx, requestID, lines)
	if err != nil {
		if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
			logging.FromContext(ctx, s.logger).Error("release idempotency key",
				zap.String("request_id", requestID),
				zap.Error(relErr),
			)
		}
		return nil, err
	}
	return results, nil
}

func (s *OrderService) process(ctx context.Context, requestID string, lines []domain.OrderLine) (results []domain.LineResult, err error) {
	ctx, span := s.tracer.Start(ctx, "order.process",
		trace.WithAttributes(
			attribute.String("order.request_id", requestID),
			attribute.Int("order.lines", len(lines)),
		),
	)
	logger := logging.WithTrace(ctx, logging.FromContext(ctx, s.logger)).With(
		zap.String("request_id", requestID),
		zap.Int("lines", len(lines)),
	)
	start := s.now()

	defer func() {
		latency := s.now().Sub(start).Seconds()
		outcome := outcomeOf(err)
		s.metrics.ObserveOrder(outcome, latency, len(results))

		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.Float64("latency_seconds", latency),
		}
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
			logger.Info("order processed", append(fields, zap.Int("product_count", len(results)))...)
		case outcome == "error" || outcome == "canceled":
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			logger.Error("order failed", append(fields, zap.Error(err))...)
		default:
			span.SetStatus(codes.Error, outcome)
			logger.Warn("order rejected", append(fields, zap.String("failure_kind", outcome), zap.Error(err))...)
		}
		span.End()
	}()

	req, err := Normalize(lines)
	if err != nil {
		return nil, err
	}
	if len(req) == 0 {
		return []domain.LineResult{}, nil
	}
	span.SetAttributes(
		attribute.Int("order.products", len(req)),
		attribute.Int("order.quantity", req.TotalQuantity()),
	)

	results, reservedAt, err := s.reserve(ctx, logger, req)
	if err != nil {
		return nil, err
	}

	s.enqueue(ctx, logger, domain.StockReservedEvent{
		RequestID:  requestID,
		Lines:      results,
		OccurredAt: reservedAt,
	})
	return results, nil
}

// reserve runs the locking read, both checks and the deductions in one unit
// of work, retrying it when the store reports a lock conflict. reservedAt is
// read while the row locks are held, so reservations of the same product are
// stamped in commit order.
func (s *OrderService) reserve(ctx context.Context, logger *zap.Logger, req domain.NormalizedRequest) (results []domain.LineResult, reservedAt time.Time, err error) {
	ids := req.ProductIDs()

	for attempt := 0; ; attempt++ {
		err = s.uow.Do(ctx, func(ctx context.Context, repo port.InventoryRepository) error {
			var err error
			results, err = reserveLocked(ctx, repo, ids, req)
			if err != nil {
				return err
			}
			reservedAt = s.now().UTC()
			return nil
		})
		if err == nil {
			return results, reservedAt, nil
		}
		if !errors.Is(err, port.ErrTxConflict) || attempt >= s.txRetries || ctx.Err() != nil {
			return nil, time.Time{}, err
		}
		s.metrics.IncTxRetry()
		logger.Debug("retrying stock transaction", zap.Int("attempt", attempt+1), zap.Error(err))
	}
}

func reserveLocked(ctx context.Context, repo port.InventoryRepository, ids []int64, req domain.NormalizedRequest) ([]domain.LineResult, error) {
	items, err := repo.LockItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	if len(items) < len(ids) {
		return nil, &domain.ProductsNotFoundError{Missing: missingIDs(ids, items)}
	}

	var shortfalls []domain.Shortfall
	for _, item := range items {
		if requested := req[item.ID]; item.Stock < requested {
			shortfalls = append(shortfalls, domain.Shortfall{
				ProductID: item.ID,
				Name:      item.Name,
				Requested: requested,
				Available: item.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &domain.InsufficientStockError{Shortfalls: shortfalls}
	}

	results := make([]domain.LineResult, 0, len(items))
	for _, item := range items {
		qty := req[item.ID]
		if err := repo.DecrementStock(ctx, item.ID, qty); err != nil {
			return nil, fmt.Errorf("decrement stock for product %d: %w", item.ID, err)
		}
		// The row lock is held until commit, so the value read above is current.
		results = append(results, domain.LineResult{ProductID: item.ID, NewStock: item.Stock - qty})
	}
	return results, nil
}

// missingIDs returns the ids with no locked row; ids is ascending.
func missingIDs(ids []int64, items []domain.InventoryItem) []int64 {
	found := make(map[int64]struct{}, len(items))
	for _, item := range items {
		found[item.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if f, ok := domain.FailureOf(err); ok {
		return string(f.Kind())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
