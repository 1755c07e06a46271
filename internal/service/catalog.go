package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/repository"
	"github.com/mmeshcher/atompoint/internal/validation"
)

// ListProducts возвращает товары каталога. Неактивные товары видит только администратор.
func (s *Service) ListProducts(ctx context.Context, actor model.Identity, includeInactive bool) ([]model.Product, error) {
	if includeInactive && !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	return s.store.ListProducts(ctx, !includeInactive)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

// CreateProduct добавляет товар в каталог. Только для администратора.
func (s *Service) CreateProduct(ctx context.Context, actor model.Identity, p *model.Product) (*model.Product, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}

	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Subcategory = strings.TrimSpace(p.Subcategory)

	if err := validation.Required("name", p.Name); err != nil {
		return nil, err
	}
	if err := validation.Required("category", p.Category); err != nil {
		return nil, err
	}
	if p.Price.IsNegative() {
		return nil, model.NewValidationError("price", "must not be negative")
	}
	if p.Stock < 0 {
		return nil, model.NewValidationError("stock", "must not be negative")
	}

	return s.store.CreateProduct(ctx, p)
}

// UpdateProduct меняет описание, цену и видимость товара. Остаток меняется на
// upd.StockDelta через Catalog.AdjustStock, который не допускает отрицательного значения.
func (s *Service) UpdateProduct(ctx context.Context, actor model.Identity, productID int64, upd model.ProductUpdate) (*model.Product, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	if upd.Name != nil {
		if err := validation.Required("name", *upd.Name); err != nil {
			return nil, err
		}
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return nil, model.NewValidationError("price", "must not be negative")
	}

	var product *model.Product

	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.UpdateProductDetails(ctx, productID, upd)
		if err != nil {
			return err
		}

		if upd.StockDelta != 0 {
			stock, err := tx.AdjustStock(ctx, productID, upd.StockDelta)
			if err != nil {
				return err
			}
			p.Stock = stock
		}

		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}
