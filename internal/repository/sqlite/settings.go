package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmeshcher/atompoint/internal/model"
)

// GetPaymentDetails возвращает реквизиты для оплаты пополнений.
func (r *Repository) GetPaymentDetails(ctx context.Context) ([]model.PaymentDetail, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT method, name, number FROM payment_details ORDER BY method`)
	if err != nil {
		return nil, fmt.Errorf("select payment details: %w", err)
	}
	defer rows.Close()

	var res []model.PaymentDetail
	for rows.Next() {
		var d model.PaymentDetail
		if err := rows.Scan(&d.Method, &d.Name, &d.Number); err != nil {
			return nil, fmt.Errorf("scan payment detail: %w", err)
		}
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ReplacePaymentDetails заменяет весь набор реквизитов одной транзакцией.
func (r *Repository) ReplacePaymentDetails(ctx context.Context, details []model.PaymentDetail) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_details`); err != nil {
		return fmt.Errorf("delete payment details: %w", err)
	}

	for _, d := range details {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payment_details (method, name, number) VALUES (?, ?, ?)`,
			d.Method, d.Name, d.Number,
		)
		if err != nil {
			return convertErr(err, "insert payment detail")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetSetting возвращает значение настройки приложения.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// PutSetting сохраняет значение настройки приложения.
func (r *Repository) PutSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}
