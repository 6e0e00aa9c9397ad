package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
	"github.com/rl1809/catalog-fulfillment/internal/core/service"
	"github.com/rl1809/catalog-fulfillment/internal/pkg/logging"
)

// OrderProcessor is the slice of service.OrderService the transport needs.
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, lines []domain.OrderLine) ([]domain.LineResult, error)
	ProcessOrderOnce(ctx context.Context, requestID string, lines []domain.OrderLine) ([]domain.LineResult, error)
}

type ProcessOrderRequest struct {
	RequestID string        `json:"request_id,omitempty"`
	Lines     []OrderLineIn `json:"lines"`
}

// OrderLineIn keeps both fields raw so a missing or non-integer value reaches
// validation instead of failing the whole decode.
type OrderLineIn struct {
	ProductID json.RawMessage `json:"product_id,omitempty"`
	Quantity  json.RawMessage `json:"quantity,omitempty"`
}

func NewOrderLineIn(productID, quantity int64) OrderLineIn {
	return OrderLineIn{
		ProductID: json.RawMessage(strconv.FormatInt(productID, 10)),
		Quantity:  json.RawMessage(strconv.FormatInt(quantity, 10)),
	}
}

type ProcessOrderResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Results []LineResultOut `json:"results,omitempty"`
	Failure *FailureOut     `json:"failure,omitempty"`
}

type LineResultOut struct {
	ProductID int64 `json:"product_id"`
	NewStock  int   `json:"new_stock"`
}

type FailureOut struct {
	Kind       string         `json:"kind"`
	Line       *int           `json:"line,omitempty"`
	Field      string         `json:"field,omitempty"`
	Missing    []int64        `json:"missing,omitempty"`
	Shortfalls []ShortfallOut `json:"shortfalls,omitempty"`
}

type ShortfallOut struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type GRPCHandler struct {
	orderService OrderProcessor
	logger       *zap.Logger
}

func NewGRPCHandler(orderService OrderProcessor, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{orderService: orderService, logger: logger}
}

// ProcessOrder returns order failures as response data. Only infrastructure
// errors become gRPC status errors.
func (h *GRPCHandler) ProcessOrder(ctx context.Context, req *ProcessOrderRequest) (*ProcessOrderResponse, error) {
	lines := make([]domain.OrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = domain.OrderLine{
			ProductID: parseInteger(l.ProductID),
			Quantity:  parseInteger(l.Quantity),
		}
	}

	var (
		results []domain.LineResult
		err     error
	)
	if req.RequestID != "" {
		results, err = h.orderService.ProcessOrderOnce(ctx, req.RequestID, lines)
	} else {
		results, err = h.orderService.ProcessOrder(ctx, lines)
	}

	if err != nil {
		if errors.Is(err, service.ErrDuplicateRequest) {
			return &ProcessOrderResponse{
				Success: false,
				Message: "duplicate request",
			}, nil
		}
		if f, ok := domain.FailureOf(err); ok {
			return &ProcessOrderResponse{
				Success: false,
				Message: f.Error(),
				Failure: failureOut(f),
			}, nil
		}
		return nil, h.statusError(ctx, err)
	}

	out := make([]LineResultOut, len(results))
	for i, r := range results {
		out[i] = LineResultOut{ProductID: r.ProductID, NewStock: r.NewStock}
	}
	return &ProcessOrderResponse{
		Success: true,
		Message: "order processed",
		Results: out,
	}, nil
}

func (h *GRPCHandler) statusError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	logging.FromContext(ctx, h.logger).Error("process order", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func failureOut(f domain.Failure) *FailureOut {
	out := &FailureOut{Kind: string(f.Kind())}
	switch e := f.(type) {
	case *domain.ValidationError:
		line := e.Line
		out.Line = &line
		out.Field = e.Field
	case *domain.ProductsNotFoundError:
		out.Missing = e.Missing
	case *domain.InsufficientStockError:
		out.Shortfalls = make([]ShortfallOut, len(e.Shortfalls))
		for i, s := range e.Shortfalls {
			out.Shortfalls[i] = ShortfallOut{
				ProductID: s.ProductID,
				Name:      s.Name,
				Requested: s.Requested,
				Available: s.Available,
			}
		}
	}
	return out
}

// parseInteger accepts only JSON integer numbers; anything else yields nil.
func parseInteger(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &i
}
