package sqlite

import (
	"context"
	"fmt"

	"github.com/mmeshcher/atompoint/internal/model"
)

// CreateNotification добавляет сообщение во входящие пользователя.
func (r *Repository) CreateNotification(ctx context.Context, userID int64, message string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message, created_at) VALUES (?, ?, ?)`,
		userID, message, now(),
	)
	if err != nil {
		return convertErr(err, "insert notification")
	}
	return nil
}

// GetNotificationsByUser возвращает входящие пользователя, новые первыми.
func (r *Repository) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, message, read, created_at
		 FROM notifications
		 WHERE user_id = ?
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
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, timestamp{&n.CreatedAt}); err != nil {
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
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}
