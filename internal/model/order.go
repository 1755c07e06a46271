package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType описывает вид заказа.
type OrderType string

const (
	OrderTypeProduct OrderType = "product"
	OrderTypeCredit  OrderType = "credit"
)

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCompleted OrderStatus = "completed"
)

// PaymentMethodCredits обозначает оплату товара внутренним балансом.
const PaymentMethodCredits = "credits"

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusApproved, OrderStatusRejected},
	OrderStatusApproved: {OrderStatusCompleted},
}

// ParseOrderStatus проверяет строковое значение статуса.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusApproved, OrderStatusRejected, OrderStatusCompleted:
		return st, true
	}
	return "", false
}

// CanTransitionTo сообщает, допустим ли переход из текущего статуса в next.
// Переход в тот же статус недопустим.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, st := range orderTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// Order описывает заказ товара или пополнения баланса.
type Order struct {
	ID            int64
	UserID        int64
	ProductID     *int64
	Type          OrderType
	Amount        decimal.Decimal
	Quantity      int
	Status        OrderStatus
	PaymentMethod string
	PaymentProof  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderView описывает заказ вместе с именем владельца и названием товара для выдачи списков.
type OrderView struct {
	Order
	Username    string
	ProductName string
}

// OrderScope определяет, чьи заказы возвращает список.
type OrderScope string

const (
	ScopeMine OrderScope = "mine"
	ScopeAll  OrderScope = "all"
)

// PurchaseResult описывает результат покупки товара.
type PurchaseResult struct {
	OrderID          int64
	RemainingCredits int64
}

// TopUpResult описывает созданную заявку на пополнение баланса.
type TopUpResult struct {
	OrderID int64
	Status  OrderStatus
}

// StatusResult описывает заказ после смены статуса.
type StatusResult struct {
	OrderID int64
	Status  OrderStatus
}
