package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/atompoint/internal/model"
)

type purchaseRequest struct {
	Quantity int `json:"quantity"`
}

type purchaseResponse struct {
	OrderID          int64 `json:"orderId"`
	RemainingCredits int64 `json:"remainingCredits"`
}

type topUpRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentProof  string          `json:"paymentProof"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

type orderStatusResponse struct {
	OrderID int64             `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
}

type orderResponse struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"userId"`
	Username      string            `json:"username"`
	ProductID     *int64            `json:"productId"`
	ProductName   string            `json:"productName,omitempty"`
	Type          model.OrderType   `json:"type"`
	Amount        float64           `json:"amount"`
	Quantity      int               `json:"quantity"`
	Status        model.OrderStatus `json:"status"`
	PaymentMethod string            `json:"paymentMethod"`
	PaymentProof  string            `json:"paymentProof,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func toOrderResponses(orders []model.OrderView) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			ID:            o.ID,
			UserID:        o.UserID,
			Username:      o.Username,
			ProductID:     o.ProductID,
			ProductName:   o.ProductName,
			Type:          o.Type,
			Amount:        o.Amount.InexactFloat64(),
			Quantity:      o.Quantity,
			Status:        o.Status,
			PaymentMethod: o.PaymentMethod,
			PaymentProof:  o.PaymentProof,
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     o.UpdatedAt,
		})
	}
	return resp
}

// Purchase покупает товар за кредиты текущего пользователя.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.orders.SubmitPurchase(r.Context(), id, productID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{OrderID: res.OrderID, RemainingCredits: res.RemainingCredits})
}

// BuyCredits создаёт заявку на пополнение баланса.
func (h *Handler) BuyCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.orders.SubmitTopUp(r.Context(), id, req.Amount, req.PaymentMethod, req.PaymentProof)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderStatusResponse{OrderID: res.OrderID, Status: res.Status})
}

// SetOrderStatus меняет статус заказа.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req orderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.orders.SetStatus(r.Context(), id, orderID, req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: res.OrderID, Status: res.Status})
}

// MyOrders возвращает заказы текущего пользователя.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, model.ScopeMine)
}

// AllOrders возвращает все заказы.
func (h *Handler) AllOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, model.ScopeAll)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, scope model.OrderScope) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), id, scope)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}
