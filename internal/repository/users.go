package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/atompoint/internal/model"
)

const userColumns = `id, username, role, balance, security_deposit, banned, created_at, updated_at`

func scanUser(row pgx.Row, extra ...any) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	dest := append([]any{&u.ID, &u.Username, &role, &u.Balance, &u.SecurityDeposit, &u.Banned, &u.CreatedAt, &u.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func getUser(ctx context.Context, q dbtx, userID int64) (*model.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, convertErr(err, "get user")
	}
	return u, nil
}

func getBalance(ctx context.Context, q dbtx, userID int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, convertErr(err, "get balance")
	}
	return balance, nil
}

// adjustBalance изменяет баланс условным UPDATE: строка меняется только если
// результат неотрицателен, что атомарно относительно конкурентных списаний.
func adjustBalance(ctx context.Context, q dbtx, userID int64, delta int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = NOW()
		 WHERE id = $1 AND balance + $2 >= 0
		 RETURNING balance`,
		userID, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return 0, model.ErrNotFound
	}
	return 0, model.ErrInsufficientCredits
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, passwordHash string, securityDeposit int64, role model.Role) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, security_deposit, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		username, passwordHash, securityDeposit, string(role),
	))
	if err != nil {
		return nil, convertErr(err, "create user")
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return getUser(ctx, r.pool, userID)
}

// GetUserByUsername возвращает пользователя и хеш его пароля.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, string, error) {
	var hash string
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = $1`,
		username,
	), &hash)
	if err != nil {
		return nil, "", convertErr(err, "get user by username")
	}
	return u, hash, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// UpdateUser применяет административные изменения флагов пользователя.
func (r *PostgresRepository) UpdateUser(ctx context.Context, userID int64, upd model.UserUpdate) (*model.User, error) {
	var role *string
	if upd.IsAdmin != nil {
		v := string(model.RoleFromFlag(*upd.IsAdmin))
		role = &v
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET banned = COALESCE($2, banned), role = COALESCE($3, role), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, upd.Banned, role,
	))
	if err != nil {
		return nil, convertErr(err, "update user")
	}
	return u, nil
}

// UpdatePassword заменяет хеш пароля пользователя.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetBalance возвращает текущий баланс пользователя.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return getBalance(ctx, r.pool, userID)
}
