package domain

import "time"

// StockReservedEvent is emitted after an order's deductions are committed.
type StockReservedEvent struct {
	RequestID  string
	Lines      []LineResult
	OccurredAt time.Time
}
