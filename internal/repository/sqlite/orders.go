package sqlite

import (
	"context"
	"fmt"

	"github.com/mmeshcher/atompoint/internal/model"
)

const orderColumns = `id, user_id, product_id, type, amount, quantity, status, payment_method, payment_proof, created_at, updated_at`

func scanOrder(row scanner, extra ...any) (*model.Order, error) {
	var (
		o       model.Order
		orderTp string
		status  string
	)
	dest := append([]any{&o.ID, &o.UserID, &o.ProductID, &orderTp, &o.Amount, &o.Quantity, &status,
		&o.PaymentMethod, &o.PaymentProof, timestamp{&o.CreatedAt}, timestamp{&o.UpdatedAt}}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	o.Type = model.OrderType(orderTp)
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func createOrder(ctx context.Context, q querier, order *model.Order) (*model.Order, error) {
	ts := now()
	o, err := scanOrder(q.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, product_id, type, amount, quantity, status, payment_method, payment_proof, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+orderColumns,
		order.UserID, order.ProductID, string(order.Type), order.Amount.String(), order.Quantity,
		string(order.Status), order.PaymentMethod, order.PaymentProof, ts, ts,
	))
	if err != nil {
		return nil, convertErr(err, "insert order")
	}
	return o, nil
}

const orderViewQuery = `SELECT o.id, o.user_id, o.product_id, o.type, o.amount, o.quantity, o.status,
       o.payment_method, o.payment_proof, o.created_at, o.updated_at,
       u.username, COALESCE(p.name, '')
FROM orders o
JOIN users u ON u.id = o.user_id
LEFT JOIN products p ON p.id = o.product_id`

func (r *Repository) queryOrderViews(ctx context.Context, query string, args ...any) ([]model.OrderView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.OrderView
	for rows.Next() {
		var v model.OrderView
		o, err := scanOrder(rows, &v.Username, &v.ProductName)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		v.Order = *o
		orders = append(orders, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *Repository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.OrderView, error) {
	return r.queryOrderViews(ctx, orderViewQuery+` WHERE o.user_id = ? ORDER BY o.created_at DESC, o.id DESC`, userID)
}

// GetAllOrders возвращает все заказы, новые первыми.
func (r *Repository) GetAllOrders(ctx context.Context) ([]model.OrderView, error) {
	return r.queryOrderViews(ctx, orderViewQuery+` ORDER BY o.created_at DESC, o.id DESC`)
}
