package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/atompoint/internal/model"
)

const defaultSubcategory = "default"

type catalogItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Description string  `json:"description"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
	Active      bool    `json:"active"`
}

type createProductRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl"`
	Stock       int             `json:"stock"`
	Active      *bool           `json:"active"`
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"imageUrl"`
	Active      *bool            `json:"active"`
	StockDelta  int              `json:"stockDelta"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price.InexactFloat64(),
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Description: p.Description,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
	}
}

// groupProducts группирует товары по категории и подкатегории.
func groupProducts(products []model.Product) map[string]map[string][]catalogItem {
	res := make(map[string]map[string][]catalogItem)
	for _, p := range products {
		sub := p.Subcategory
		if sub == "" {
			sub = defaultSubcategory
		}
		if res[p.Category] == nil {
			res[p.Category] = make(map[string][]catalogItem)
		}
		res[p.Category][sub] = append(res[p.Category][sub], catalogItem{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price.InexactFloat64(),
			Description: p.Description,
			Stock:       p.Stock,
			ImageURL:    p.ImageURL,
		})
	}
	return res
}

// Catalog возвращает активные товары, сгруппированные по категориям.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), model.Identity{}, false)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, groupProducts(products))
}

// AllProducts возвращает все товары, включая неактивные.
func (h *Handler) AllProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	products, err := h.service.ListProducts(r.Context(), id, true)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	p, err := h.service.CreateProduct(r.Context(), id, &model.Product{
		Name:        req.Name,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      active,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct изменяет товар. Остаток меняется на stockDelta.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), id, productID, model.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Active:      req.Active,
		StockDelta:  req.StockDelta,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}
