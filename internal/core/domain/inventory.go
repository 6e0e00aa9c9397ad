package domain

// InventoryItem is a stock row owned by the catalog store. The order path only
// reads it under lock and decrements Stock; Stock never drops below zero.
type InventoryItem struct {
	ID    int64
	Name  string
	Stock int
}
