package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmeshcher/atompoint/internal/model"
)

const userColumns = `id, username, role, balance, security_deposit, banned, created_at, updated_at`

func scanUser(row scanner, extra ...any) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	dest := append([]any{&u.ID, &u.Username, &role, &u.Balance, &u.SecurityDeposit, &u.Banned,
		timestamp{&u.CreatedAt}, timestamp{&u.UpdatedAt}}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func getUser(ctx context.Context, q querier, userID int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
	if err != nil {
		return nil, convertErr(err, "get user")
	}
	return u, nil
}

func getBalance(ctx context.Context, q querier, userID int64) (int64, error) {
	var balance int64
	if err := q.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		return 0, convertErr(err, "get balance")
	}
	return balance, nil
}

// adjustBalance меняет баланс только если результат неотрицателен.
func adjustBalance(ctx context.Context, q querier, userID int64, delta int64) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx,
		`UPDATE users SET balance = balance + ?, updated_at = ?
		 WHERE id = ? AND balance + ? >= 0
		 RETURNING balance`,
		delta, now(), userID, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return 0, model.ErrNotFound
	}
	return 0, model.ErrInsufficientCredits
}

// CreateUser создаёт нового пользователя.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string, securityDeposit int64, role model.Role) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, security_deposit, role)
		 VALUES (?, ?, ?, ?)
		 RETURNING `+userColumns,
		username, passwordHash, securityDeposit, string(role),
	))
	if err != nil {
		return nil, convertErr(err, "create user")
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *Repository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return getUser(ctx, r.db, userID)
}

// GetUserByUsername возвращает пользователя и хеш его пароля.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, string, error) {
	var hash string
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = ?`,
		username,
	), &hash)
	if err != nil {
		return nil, "", convertErr(err, "get user by username")
	}
	return u, hash, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *Repository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
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
func (r *Repository) UpdateUser(ctx context.Context, userID int64, upd model.UserUpdate) (*model.User, error) {
	var role *string
	if upd.IsAdmin != nil {
		v := string(model.RoleFromFlag(*upd.IsAdmin))
		role = &v
	}

	u, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET banned = COALESCE(?, banned), role = COALESCE(?, role), updated_at = ?
		 WHERE id = ?
		 RETURNING `+userColumns,
		upd.Banned, role, now(), userID,
	))
	if err != nil {
		return nil, convertErr(err, "update user")
	}
	return u, nil
}

// UpdatePassword заменяет хеш пароля пользователя.
func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now(), userID,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetBalance возвращает текущий баланс пользователя.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return getBalance(ctx, r.db, userID)
}
