package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects the driver and SQL flavour of a SQLStore.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectMySQL, DialectPostgres, DialectSQLite:
		return d, nil
	case "postgresql", "pg":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// driverName is the database/sql driver registered by the imported package.
func (d Dialect) driverName() string {
	return string(d)
}

func (d Dialect) schema() string {
	switch d {
	case DialectMySQL:
		return `
		CREATE TABLE IF NOT EXISTS inventory_items (
			id    BIGINT       NOT NULL PRIMARY KEY,
			name  VARCHAR(150) NOT NULL,
			stock INT          NOT NULL DEFAULT 0,
			CONSTRAINT chk_inventory_items_stock CHECK (stock >= 0)
		) ENGINE=InnoDB`
	case DialectPostgres:
		return `
		CREATE TABLE IF NOT EXISTS inventory_items (
			id    BIGINT       PRIMARY KEY,
			name  VARCHAR(150) NOT NULL,
			stock INTEGER      NOT NULL DEFAULT 0 CHECK (stock >= 0)
		)`
	default:
		return `
		CREATE TABLE IF NOT EXISTS inventory_items (
			id    INTEGER PRIMARY KEY,
			name  TEXT    NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0)
		)`
	}
}

// lockItemsQuery reads the rows for ids under an exclusive row lock. SQLite
// has no row locks; its transactions begin IMMEDIATE and hold the database
// write lock instead.
func (d Dialect) lockItemsQuery(ids []int64) (string, []any) {
	const sel = `SELECT id, name, stock FROM inventory_items`

	if d == DialectPostgres {
		return sel + ` WHERE id = ANY($1) ORDER BY id FOR UPDATE`, []any{pq.Array(ids)}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`%s WHERE id IN (%s) ORDER BY id`, sel, placeholders)
	if d == DialectMySQL {
		q += ` FOR UPDATE`
	}
	return q, args
}

// decrementQuery subtracts from the stored value, never from a value read earlier.
func (d Dialect) decrementQuery(productID int64, quantity int) (string, []any) {
	if d == DialectPostgres {
		return `UPDATE inventory_items SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
			[]any{quantity, productID}
	}
	return `UPDATE inventory_items SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		[]any{quantity, productID, quantity}
}

func (d Dialect) getItemQuery() string {
	if d == DialectPostgres {
		return `SELECT id, name, stock FROM inventory_items WHERE id = $1`
	}
	return `SELECT id, name, stock FROM inventory_items WHERE id = ?`
}

func (d Dialect) upsertItemQuery() string {
	switch d {
	case DialectMySQL:
		return `
		INSERT INTO inventory_items (id, name, stock) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), stock = VALUES(stock)`
	case DialectPostgres:
		return `
		INSERT INTO inventory_items (id, name, stock) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, stock = excluded.stock`
	default:
		return `
		INSERT INTO inventory_items (id, name, stock) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, stock = excluded.stock`
	}
}

// isConflict reports whether err is a lock conflict after which the whole
// transaction can be retried.
func (d Dialect) isConflict(err error) bool {
	switch d {
	case DialectMySQL:
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			// 1213 deadlock, 1205 lock wait timeout
			return myErr.Number == 1213 || myErr.Number == 1205
		}
	case DialectPostgres:
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			// serialization_failure, deadlock_detected
			return pqErr.Code == "40001" || pqErr.Code == "40P01"
		}
	case DialectSQLite:
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			code := liteErr.Code() & 0xff
			return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
		}
	}
	return false
}
