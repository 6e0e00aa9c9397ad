package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidProductID  = errors.New("invalid product id")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrProductsNotFound  = errors.New("products not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type FailureKind string

const (
	FailureInvalidProductID  FailureKind = "invalid_product_id"
	FailureInvalidQuantity   FailureKind = "invalid_quantity"
	FailureProductsNotFound  FailureKind = "products_not_found"
	FailureInsufficientStock FailureKind = "insufficient_stock"
)

// Failure is a caller-correctable order failure. The set of implementations
// is closed: ValidationError, ProductsNotFoundError and InsufficientStockError.
type Failure interface {
	error
	Kind() FailureKind
	failure()
}

// FailureOf extracts the order failure carried by err, if any.
func FailureOf(err error) (Failure, bool) {
	var f Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ValidationError reports the first malformed line of an order.
type ValidationError struct {
	kind    FailureKind
	Line    int
	Field   string
	Message string
}

func NewInvalidProductID(line int) *ValidationError {
	return &ValidationError{
		kind:    FailureInvalidProductID,
		Line:    line,
		Field:   "product_id",
		Message: "invalid or missing product_id",
	}
}

func NewInvalidQuantity(line int, msg string) *ValidationError {
	if msg == "" {
		msg = "quantity must be a positive integer"
	}
	return &ValidationError{
		kind:    FailureInvalidQuantity,
		Line:    line,
		Field:   "quantity",
		Message: msg,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
}

func (e *ValidationError) Kind() FailureKind { return e.kind }

func (e *ValidationError) Is(target error) bool {
	switch e.kind {
	case FailureInvalidProductID:
		return target == ErrInvalidProductID
	case FailureInvalidQuantity:
		return target == ErrInvalidQuantity
	}
	return false
}

func (*ValidationError) failure() {}

// ProductsNotFoundError lists every requested id with no inventory row, ascending.
type ProductsNotFoundError struct {
	Missing []int64
}

func (e *ProductsNotFoundError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: [%s]", ErrProductsNotFound, strings.Join(ids, ", "))
}

func (*ProductsNotFoundError) Kind() FailureKind { return FailureProductsNotFound }

func (*ProductsNotFoundError) Is(target error) bool { return target == ErrProductsNotFound }

func (*ProductsNotFoundError) failure() {}

type Shortfall struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

// InsufficientStockError carries every line whose request exceeds stock.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("product %d requested %d available %d", s.ProductID, s.Requested, s.Available)
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientStock, strings.Join(parts, "; "))
}

func (*InsufficientStockError) Kind() FailureKind { return FailureInsufficientStock }

func (*InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func (*InsufficientStockError) failure() {}
