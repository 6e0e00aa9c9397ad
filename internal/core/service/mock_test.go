package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
	"github.com/rl1809/catalog-fulfillment/internal/port"
)

// Mock UnitOfWork: per-row mutexes taken in id order stand in for
// SELECT ... FOR UPDATE, writes are staged and applied on commit.
type mockStore struct {
	mu          sync.Mutex
	items       map[int64]domain.InventoryItem
	rowLocks    map[int64]*sync.Mutex
	doCalls     int
	conflicts   int
	failProduct int64
}

func newMockStore(items ...domain.InventoryItem) *mockStore {
	m := &mockStore{
		items:    make(map[int64]domain.InventoryItem),
		rowLocks: make(map[int64]*sync.Mutex),
	}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *mockStore) Do(ctx context.Context, fn func(ctx context.Context, repo port.InventoryRepository) error) error {
	m.mu.Lock()
	m.doCalls++
	if m.conflicts > 0 {
		m.conflicts--
		m.mu.Unlock()
		return fmt.Errorf("begin: %w", port.ErrTxConflict)
	}
	m.mu.Unlock()

	tx := &mockTx{store: m, pending: make(map[int64]int)}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, delta := range tx.pending {
		it := m.items[id]
		it.Stock += delta
		m.items[id] = it
	}
	return nil
}

func (m *mockStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Stock
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doCalls
}

func (m *mockStore) rowLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[id] = l
	}
	return l
}

type mockTx struct {
	store   *mockStore
	held    []*sync.Mutex
	pending map[int64]int
}

func (tx *mockTx) LockItems(ctx context.Context, ids []int64) ([]domain.InventoryItem, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var items []domain.InventoryItem
	for _, id := range sorted {
		l := tx.store.rowLock(id)
		l.Lock()
		tx.held = append(tx.held, l)

		tx.store.mu.Lock()
		it, ok := tx.store.items[id]
		tx.store.mu.Unlock()
		if ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (tx *mockTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if tx.store.failProduct == productID {
		return errors.New("connection reset")
	}
	tx.store.mu.Lock()
	current := tx.store.items[productID].Stock + tx.pending[productID]
	tx.store.mu.Unlock()
	if current < quantity {
		return port.ErrStockConflict
	}
	tx.pending[productID] -= quantity
	return nil
}

func (tx *mockTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	tx.held = nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	stock          map[int64]int
	setErr         error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotencySet: make(map[string]bool),
		stock:          make(map[int64]int),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, productID int64, stock int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.stock[productID] = stock
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.StockReservedEvent
	err    error
}

func (p *mockPublisher) PublishStockReserved(ctx context.Context, event domain.StockReservedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

func line(productID, quantity int64) domain.OrderLine {
	return domain.NewOrderLine(productID, quantity)
}
