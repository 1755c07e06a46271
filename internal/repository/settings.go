package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/atompoint/internal/model"
)

// GetPaymentDetails возвращает реквизиты для оплаты пополнений.
func (r *PostgresRepository) GetPaymentDetails(ctx context.Context) ([]model.PaymentDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT method, name, number FROM payment_details ORDER BY method`)
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
func (r *PostgresRepository) ReplacePaymentDetails(ctx context.Context, details []model.PaymentDetail) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM payment_details`); err != nil {
		return fmt.Errorf("delete payment details: %w", err)
	}

	batch := &pgx.Batch{}
	for _, d := range details {
		batch.Queue(`INSERT INTO payment_details (method, name, number) VALUES ($1, $2, $3)`, d.Method, d.Name, d.Number)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return convertErr(err, "insert payment details")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetSetting возвращает значение настройки приложения.
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// PutSetting сохраняет значение настройки приложения.
func (r *PostgresRepository) PutSetting(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO app_settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}
