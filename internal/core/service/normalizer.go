package service

import (
	"math"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

// MaxLineQuantity bounds a single product's total requested quantity.
const MaxLineQuantity = math.MaxInt32

// Normalize validates lines in input order and merges duplicates into one
// quantity per product. The first malformed line aborts normalization.
// A nil or empty input yields an empty request.
func Normalize(lines []domain.OrderLine) (domain.NormalizedRequest, error) {
	req := make(domain.NormalizedRequest, len(lines))
	for i, line := range lines {
		if line.ProductID == nil {
			return nil, domain.NewInvalidProductID(i)
		}
		if line.Quantity == nil || *line.Quantity <= 0 {
			return nil, domain.NewInvalidQuantity(i, "")
		}

		pid := *line.ProductID
		qty := *line.Quantity
		if qty > MaxLineQuantity || int64(req[pid])+qty > MaxLineQuantity {
			return nil, domain.NewInvalidQuantity(i, "quantity exceeds the maximum per product")
		}
		req[pid] += int(qty)
	}
	return req, nil
}
