package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/atompoint/internal/model"
)

// CreateNotification добавляет сообщение во входящие пользователя.
func (r *PostgresRepository) CreateNotification(ctx context.Context, userID int64, message string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (user_id, message) VALUES ($1, $2)`,
		userID, message,
	)
	if err != nil {
		return convertErr(err, "insert notification")
	}
	return nil
}

// GetNotificationsByUser возвращает входящие пользователя, новые первыми.
func (r *PostgresRepository) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationRead отмечает сообщение пользователя прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
