package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmeshcher/atompoint/internal/model"
)

const productColumns = `id, name, category, subcategory, description, image_url, price, stock, active, created_at, updated_at`

func scanProduct(row scanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Subcategory, &p.Description, &p.ImageURL,
		&p.Price, &p.Stock, &p.Active, timestamp{&p.CreatedAt}, timestamp{&p.UpdatedAt})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getProduct(ctx context.Context, q querier, productID int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, productID))
	if err != nil {
		return nil, convertErr(err, "get product")
	}
	return p, nil
}

// adjustStock меняет остаток только если результат неотрицателен.
func adjustStock(ctx context.Context, q querier, productID int64, delta int) (int, error) {
	var stock int
	err := q.QueryRowContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = ?
		 WHERE id = ? AND stock + ? >= 0
		 RETURNING stock`,
		delta, now(), productID, delta,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = ?)`, productID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return 0, model.ErrNotFound
	}
	return 0, model.ErrInsufficientStock
}

func updateProductDetails(ctx context.Context, q querier, productID int64, upd model.ProductUpdate) (*model.Product, error) {
	var price *string
	if upd.Price != nil {
		v := upd.Price.String()
		price = &v
	}

	p, err := scanProduct(q.QueryRowContext(ctx,
		`UPDATE products
		 SET name = COALESCE(?, name),
		     description = COALESCE(?, description),
		     image_url = COALESCE(?, image_url),
		     price = COALESCE(?, price),
		     active = COALESCE(?, active),
		     updated_at = ?
		 WHERE id = ?
		 RETURNING `+productColumns,
		upd.Name, upd.Description, upd.ImageURL, price, upd.Active, now(), productID,
	))
	if err != nil {
		return nil, convertErr(err, "update product")
	}
	return p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *Repository) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return getProduct(ctx, r.db, productID)
}

// ListProducts возвращает товары, упорядоченные по категории и названию.
func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE active = 1 OR ? = 0
		 ORDER BY category, name, id`,
		activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// CreateProduct добавляет товар в каталог.
func (r *Repository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	created, err := scanProduct(r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, category, subcategory, description, image_url, price, stock, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+productColumns,
		p.Name, p.Category, p.Subcategory, p.Description, p.ImageURL, p.Price.String(), p.Stock, p.Active,
	))
	if err != nil {
		return nil, convertErr(err, "create product")
	}
	return created, nil
}
