package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/atompoint/internal/metrics"
	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/repository"
	"github.com/mmeshcher/atompoint/internal/validation"
)

// OrderStore описывает хранилище, которым пользуется движок заказов.
type OrderStore interface {
	WithTx(ctx context.Context, fn repository.TxFunc) error
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.OrderView, error)
	GetAllOrders(ctx context.Context) ([]model.OrderView, error)
}

// Notifier доставляет уведомление пользователю. Вызов не должен блокировать.
type Notifier interface {
	Notify(userID int64, text string)
}

// Workflow реализует движок заказов: покупку за кредиты, заявку на пополнение
// и модерацию статусов.
type Workflow struct {
	store          OrderStore
	notifier       Notifier
	logger         *zap.Logger
	metrics        *metrics.Metrics
	adminRecipient int64
}

// NewWorkflow создаёт движок заказов. Уведомления администратору получает
// пользователь adminRecipient; 0 отключает их.
func NewWorkflow(store OrderStore, notifier Notifier, logger *zap.Logger, m *metrics.Metrics, adminRecipient int64) *Workflow {
	return &Workflow{
		store:          store,
		notifier:       notifier,
		logger:         logger,
		metrics:        m,
		adminRecipient: adminRecipient,
	}
}

// SubmitPurchase списывает остаток товара и кредиты покупателя и создаёт заказ
// в статусе pending. Все изменения выполняются в одной транзакции.
func (w *Workflow) SubmitPurchase(ctx context.Context, id model.Identity, productID int64, quantity int) (*model.PurchaseResult, error) {
	if quantity < 1 {
		w.submitFailed(model.OrderTypeProduct, model.ErrInvalidQuantity)
		return nil, model.ErrInvalidQuantity
	}

	var (
		result   model.PurchaseResult
		username string
		product  string
		cost     int64
	)

	err := w.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.GetUser(ctx, id.UserID)
		if err != nil {
			return err
		}
		if user.Banned {
			return model.ErrForbidden
		}

		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.Active {
			return model.ErrNotFound
		}

		cost, err = purchaseCost(p.Price, quantity)
		if err != nil {
			return err
		}

		if _, err := tx.AdjustStock(ctx, p.ID, -quantity); err != nil {
			return err
		}

		remaining, err := tx.AdjustBalance(ctx, user.ID, -cost)
		if err != nil {
			return err
		}

		pid := p.ID
		order, err := tx.CreateOrder(ctx, &model.Order{
			UserID:        user.ID,
			ProductID:     &pid,
			Type:          model.OrderTypeProduct,
			Amount:        decimal.NewFromInt(cost),
			Quantity:      quantity,
			Status:        model.OrderStatusPending,
			PaymentMethod: model.PaymentMethodCredits,
		})
		if err != nil {
			return err
		}

		result = model.PurchaseResult{OrderID: order.ID, RemainingCredits: remaining}
		username = user.Username
		product = p.Name
		return nil
	})
	if err != nil {
		w.submitFailed(model.OrderTypeProduct, err)
		return nil, err
	}

	w.metrics.OrdersCreated.WithLabelValues(string(model.OrderTypeProduct)).Inc()
	w.notifyAdmin(fmt.Sprintf("New order: %s purchased %dx %s for %d credits", username, quantity, product, cost))

	return &result, nil
}

// SubmitTopUp создаёт заявку на пополнение баланса. Баланс не меняется до одобрения.
func (w *Workflow) SubmitTopUp(ctx context.Context, id model.Identity, amount decimal.Decimal, paymentMethod, paymentProof string) (*model.TopUpResult, error) {
	credits, err := topUpCredits(amount)
	if err != nil {
		w.submitFailed(model.OrderTypeCredit, err)
		return nil, err
	}
	if err := validation.Required("paymentMethod", paymentMethod); err != nil {
		w.submitFailed(model.OrderTypeCredit, err)
		return nil, err
	}

	var (
		result   model.TopUpResult
		username string
	)

	err = w.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.GetUser(ctx, id.UserID)
		if err != nil {
			return err
		}
		if user.Banned {
			return model.ErrForbidden
		}

		order, err := tx.CreateOrder(ctx, &model.Order{
			UserID:        user.ID,
			Type:          model.OrderTypeCredit,
			Amount:        decimal.NewFromInt(credits),
			Quantity:      1,
			Status:        model.OrderStatusPending,
			PaymentMethod: paymentMethod,
			PaymentProof:  paymentProof,
		})
		if err != nil {
			return err
		}

		result = model.TopUpResult{OrderID: order.ID, Status: order.Status}
		username = user.Username
		return nil
	})
	if err != nil {
		w.submitFailed(model.OrderTypeCredit, err)
		return nil, err
	}

	w.metrics.OrdersCreated.WithLabelValues(string(model.OrderTypeCredit)).Inc()
	w.notifyAdmin(fmt.Sprintf("New credit purchase: %s wants to buy %d credits via %s", username, credits, paymentMethod))

	return &result, nil
}

// SetStatus переводит заказ в новый статус. Одобрение заявки на пополнение
// зачисляет кредиты в той же транзакции, что и смена статуса, поэтому
// повторное одобрение невозможно.
func (w *Workflow) SetStatus(ctx context.Context, actor model.Identity, orderID int64, status string) (*model.StatusResult, error) {
	if err := authorizeAdmin(actor); err != nil {
		return nil, err
	}

	next, ok := model.ParseOrderStatus(status)
	if !ok {
		return nil, model.NewValidationError("status", "must be one of pending, approved, rejected, completed")
	}

	var updated *model.Order

	err := w.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return model.ErrInvalidTransition
		}

		updated, err = tx.UpdateOrderStatus(ctx, order.ID, order.Status, next)
		if err != nil {
			return err
		}

		if updated.Type == model.OrderTypeCredit && next == model.OrderStatusApproved {
			if _, err := tx.AdjustBalance(ctx, updated.UserID, updated.Amount.IntPart()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.metrics.StatusChanges.WithLabelValues(string(updated.Type), string(updated.Status)).Inc()
	w.notifier.Notify(updated.UserID, statusMessage(updated))

	return &model.StatusResult{OrderID: updated.ID, Status: updated.Status}, nil
}

// ListOrders возвращает заказы вызывающего (ScopeMine) или все заказы (ScopeAll, только администратор).
func (w *Workflow) ListOrders(ctx context.Context, id model.Identity, scope model.OrderScope) ([]model.OrderView, error) {
	switch scope {
	case model.ScopeMine:
		return w.store.GetOrdersByUser(ctx, id.UserID)
	case model.ScopeAll:
		if err := authorizeAdmin(id); err != nil {
			return nil, err
		}
		return w.store.GetAllOrders(ctx)
	}
	return nil, model.NewValidationError("scope", "must be mine or all")
}

// authorizeAdmin возвращает ErrForbidden, если вызывающий не администратор.
func authorizeAdmin(id model.Identity) error {
	if !id.IsAdmin() {
		return model.ErrForbidden
	}
	return nil
}

func (w *Workflow) notifyAdmin(text string) {
	if w.adminRecipient == 0 {
		w.logger.Debug("admin notification skipped, no recipient configured")
		return
	}
	w.notifier.Notify(w.adminRecipient, text)
}

func (w *Workflow) submitFailed(tp model.OrderType, err error) {
	w.metrics.OrdersRejected.WithLabelValues(string(tp), failureReason(err)).Inc()
}

// purchaseCost возвращает стоимость покупки в целых кредитах, округляя вверх.
func purchaseCost(price decimal.Decimal, quantity int) (int64, error) {
	total := price.Mul(decimal.NewFromInt(int64(quantity))).Ceil()
	if !total.Equal(decimal.NewFromInt(total.IntPart())) {
		return 0, model.ErrInvalidQuantity
	}
	return total.IntPart(), nil
}

// topUpCredits проверяет, что сумма пополнения положительна, целая и помещается в int64.
func topUpCredits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || !amount.IsInteger() {
		return 0, model.ErrInvalidAmount
	}
	credits := amount.IntPart()
	if !amount.Equal(decimal.NewFromInt(credits)) {
		return 0, model.ErrInvalidAmount
	}
	return credits, nil
}

func statusMessage(o *model.Order) string {
	switch {
	case o.Type == model.OrderTypeCredit && o.Status == model.OrderStatusApproved:
		return fmt.Sprintf("Your credit purchase of %s credits has been approved!", o.Amount.String())
	case o.Status == model.OrderStatusRejected:
		return "Your order has been rejected. Please contact admin for details."
	case o.Status == model.OrderStatusApproved:
		return fmt.Sprintf("Your order #%d has been approved.", o.ID)
	case o.Status == model.OrderStatusCompleted:
		return fmt.Sprintf("Your order #%d has been completed.", o.ID)
	}
	return fmt.Sprintf("Your order #%d is now %s.", o.ID, o.Status)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, model.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrForbidden):
		return "forbidden"
	case errors.Is(err, model.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, model.ErrInsufficientCredits):
		return "insufficient_credits"
	}
	return "internal"
}
