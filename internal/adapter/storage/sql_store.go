package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
	"github.com/rl1809/catalog-fulfillment/internal/port"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the database for dialect and verifies it with a ping.
func Open(ctx context.Context, dialect Dialect, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// one writer at a time; every transaction holds the database lock anyway
		db.SetMaxOpenConns(1)
	} else {
		if pool.MaxOpenConns > 0 {
			db.SetMaxOpenConns(pool.MaxOpenConns)
		}
		if pool.MaxIdleConns > 0 {
			db.SetMaxIdleConns(pool.MaxIdleConns)
		}
		if pool.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(pool.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

// SQLiteDSN builds a modernc DSN for path: WAL journal, a busy timeout and
// IMMEDIATE transactions so the locking read already owns the write lock.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(on)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// SQLStore implements port.UnitOfWork and port.InventoryReader on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Do(ctx context.Context, fn func(ctx context.Context, repo port.InventoryRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txRepository{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

func (s *SQLStore) GetInventory(ctx context.Context, productID int64) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, s.dialect.getItemQuery(), productID).
		Scan(&item.ID, &item.Name, &item.Stock)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &item, nil
}

// UpsertItem creates the row or overwrites its name and stock.
func (s *SQLStore) UpsertItem(ctx context.Context, item domain.InventoryItem) error {
	if item.Stock < 0 {
		return fmt.Errorf("upsert inventory %d: negative stock %d", item.ID, item.Stock)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertItemQuery(), item.ID, item.Name, item.Stock); err != nil {
		return fmt.Errorf("upsert inventory %d: %w", item.ID, err)
	}
	return nil
}

func (s *SQLStore) wrap(op string, err error) error {
	return wrapConflict(s.dialect, op, err)
}

func wrapConflict(d Dialect, op string, err error) error {
	if d.isConflict(err) {
		return fmt.Errorf("%s: %w: %w", op, port.ErrTxConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type txRepository struct {
	tx      *sql.Tx
	dialect Dialect
}

func (r *txRepository) LockItems(ctx context.Context, ids []int64) ([]domain.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q, args := r.dialect.lockItemsQuery(ids)
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapConflict(r.dialect, "lock inventory", err)
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, len(ids))
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Stock); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapConflict(r.dialect, "lock inventory", err)
	}
	return items, nil
}

func (r *txRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	q, args := r.dialect.decrementQuery(productID, quantity)
	result, err := r.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return wrapConflict(r.dialect, "update inventory", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	if rows == 0 {
		return port.ErrStockConflict
	}
	return nil
}
