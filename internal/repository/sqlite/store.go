// Package sqlite реализует контракты хранилища поверх встроенной SQLite
// (modernc.org/sqlite, без cgo). Используется для однонодовых установок и тестов.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout совпадает с форматом strftime('%Y-%m-%dT%H:%M:%fZ') в схеме.
const timeLayout = "2006-01-02T15:04:05.000Z"

// querier покрывает и *sql.DB, и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Repository предоставляет доступ к хранилищу данных в SQLite.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New открывает (или создаёт) базу по пути path и применяет миграции.
func New(path string, logger *zap.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite допускает одного писателя; единственное соединение сериализует транзакции.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db, logger: logger}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close закрывает соединение с БД.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping проверяет доступность БД.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx выполняет fn в одной транзакции. Повторов нет: при единственном
// соединении транзакции не конкурируют за блокировки.
func (r *Repository) WithTx(ctx context.Context, fn repository.TxFunc) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
	}()

	if err := fn(ctx, &sqliteTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func sqliteCode(err error) (int, bool) {
	var e *sqlitedrv.Error
	if errors.As(err, &e) {
		return e.Code(), true
	}
	return 0, false
}

// convertErr переводит ошибки драйвера в доменные ошибки.
func convertErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if code, ok := sqliteCode(err); ok {
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, model.ErrConflict)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, model.ErrNotFound)
		}
		if code&0xff == sqlite3.SQLITE_CONSTRAINT {
			switch msg := err.Error(); {
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%s: %w", op, model.ErrConflict)
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%s: %w", op, model.ErrNotFound)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// timestamp сканирует текстовую метку времени SQLite в time.Time.
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case nil:
		*ts.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*ts.t = parsed
	return nil
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// sqliteTx реализует repository.Tx поверх *sql.Tx.
type sqliteTx struct {
	q querier
}

func (t *sqliteTx) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return getUser(ctx, t.q, userID)
}

func (t *sqliteTx) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return getBalance(ctx, t.q, userID)
}

func (t *sqliteTx) AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	return adjustBalance(ctx, t.q, userID, delta)
}

func (t *sqliteTx) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return getProduct(ctx, t.q, productID)
}

func (t *sqliteTx) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	return adjustStock(ctx, t.q, productID, delta)
}

func (t *sqliteTx) UpdateProductDetails(ctx context.Context, productID int64, upd model.ProductUpdate) (*model.Product, error) {
	return updateProductDetails(ctx, t.q, productID, upd)
}

func (t *sqliteTx) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	return createOrder(ctx, t.q, order)
}

func (t *sqliteTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := scanOrder(t.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID))
	if err != nil {
		return nil, convertErr(err, "get order")
	}
	return o, nil
}

func (t *sqliteTx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (*model.Order, error) {
	o, err := scanOrder(t.q.QueryRowContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?
		 RETURNING `+orderColumns,
		string(to), now(), orderID, string(from),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrInvalidTransition
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}
