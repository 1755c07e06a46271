package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/atompoint/internal/model"
)

const productColumns = `id, name, category, subcategory, description, image_url, price, stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Subcategory, &p.Description, &p.ImageURL,
		&p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getProduct(ctx context.Context, q dbtx, productID int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if err != nil {
		return nil, convertErr(err, "get product")
	}
	return p, nil
}

// adjustStock изменяет остаток условным UPDATE, не допуская отрицательного значения.
func adjustStock(ctx context.Context, q dbtx, productID int64, delta int) (int, error) {
	var stock int
	err := q.QueryRow(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW()
		 WHERE id = $1 AND stock + $2 >= 0
		 RETURNING stock`,
		productID, delta,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return 0, model.ErrNotFound
	}
	return 0, model.ErrInsufficientStock
}

func updateProductDetails(ctx context.Context, q dbtx, productID int64, upd model.ProductUpdate) (*model.Product, error) {
	var price *string
	if upd.Price != nil {
		v := upd.Price.String()
		price = &v
	}

	p, err := scanProduct(q.QueryRow(ctx,
		`UPDATE products
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description),
		     image_url = COALESCE($4, image_url),
		     price = COALESCE($5::numeric, price),
		     active = COALESCE($6, active),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+productColumns,
		productID, upd.Name, upd.Description, upd.ImageURL, price, upd.Active,
	))
	if err != nil {
		return nil, convertErr(err, "update product")
	}
	return p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return getProduct(ctx, r.pool, productID)
}

// ListProducts возвращает товары, упорядоченные по категории и названию.
func (r *PostgresRepository) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE active OR NOT $1
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
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	created, err := scanProduct(r.pool.QueryRow(ctx,
		`INSERT INTO products (name, category, subcategory, description, image_url, price, stock, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+productColumns,
		p.Name, p.Category, p.Subcategory, p.Description, p.ImageURL, p.Price.String(), p.Stock, p.Active,
	))
	if err != nil {
		return nil, convertErr(err, "create product")
	}
	return created, nil
}
