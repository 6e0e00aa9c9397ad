package domain

import "sort"

// OrderLine is one caller-supplied line. A nil field means the value was
// absent or not an integer.
type OrderLine struct {
	ProductID *int64
	Quantity  *int64
}

// NewOrderLine builds a well-formed line.
func NewOrderLine(productID, quantity int64) OrderLine {
	return OrderLine{ProductID: &productID, Quantity: &quantity}
}

// NormalizedRequest maps product id to the total requested quantity.
type NormalizedRequest map[int64]int

// ProductIDs returns the distinct product ids in ascending order.
func (r NormalizedRequest) ProductIDs() []int64 {
	ids := make([]int64, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TotalQuantity is the sum of all requested quantities.
func (r NormalizedRequest) TotalQuantity() int {
	total := 0
	for _, q := range r {
		total += q
	}
	return total
}

type LineResult struct {
	ProductID int64
	NewStock  int
}
