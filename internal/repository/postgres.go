// Package repository содержит контракты хранилища и их реализацию в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/atompoint/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	txMaxRetries   = 3
	txRetryBase    = 50 * time.Millisecond
	connectTimeout = 10 * time.Second
)

// dbtx покрывает и пул, и транзакцию pgx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, logger: logger}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx выполняет fn в одной транзакции. При ошибке сериализации или взаимной
// блокировке транзакция повторяется целиком с экспоненциальной задержкой.
func (r *PostgresRepository) WithTx(ctx context.Context, fn TxFunc) error {
	backoff := retry.WithMaxRetries(txMaxRetries, retry.NewExponential(txRetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.runTx(ctx, fn)
		if isRetryable(err) {
			r.logger.Warn("transaction conflict, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *PostgresRepository) runTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
	}()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// convertErr переводит ошибки драйвера в доменные ошибки.
func convertErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return model.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, model.ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pgTx реализует Tx поверх транзакции pgx.
type pgTx struct {
	q dbtx
}

func (t *pgTx) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return getUser(ctx, t.q, userID)
}

func (t *pgTx) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return getBalance(ctx, t.q, userID)
}

func (t *pgTx) AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	return adjustBalance(ctx, t.q, userID, delta)
}

func (t *pgTx) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return getProduct(ctx, t.q, productID)
}

func (t *pgTx) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	return adjustStock(ctx, t.q, productID, delta)
}

func (t *pgTx) UpdateProductDetails(ctx context.Context, productID int64, upd model.ProductUpdate) (*model.Product, error) {
	return updateProductDetails(ctx, t.q, productID, upd)
}

func (t *pgTx) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	return createOrder(ctx, t.q, order)
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*model.Order, error) {
	row := t.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "get order")
	}
	return o, nil
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (*model.Order, error) {
	row := t.q.QueryRow(ctx,
		`UPDATE orders SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+orderColumns,
		orderID, string(from), string(to),
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrInvalidTransition
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}
