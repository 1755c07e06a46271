package handler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/atompoint/internal/model"
)

// Orders определяет контракт движка заказов, используемый HTTP-обработчиками.
type Orders interface {
	SubmitPurchase(ctx context.Context, id model.Identity, productID int64, quantity int) (*model.PurchaseResult, error)
	SubmitTopUp(ctx context.Context, id model.Identity, amount decimal.Decimal, paymentMethod, paymentProof string) (*model.TopUpResult, error)
	SetStatus(ctx context.Context, actor model.Identity, orderID int64, status string) (*model.StatusResult, error)
	ListOrders(ctx context.Context, id model.Identity, scope model.OrderScope) ([]model.OrderView, error)
}

// Service определяет контракт остальной бизнес-логики: учётные записи, каталог и настройки.
type Service interface {
	Ping(ctx context.Context) error

	Register(ctx context.Context, username, password string, securityDeposit int64) (*model.AuthResult, error)
	Login(ctx context.Context, username, password string) (*model.AuthResult, error)
	Profile(ctx context.Context, id model.Identity) (*model.User, error)
	ResetPassword(ctx context.Context, actor model.Identity, userID int64, newPassword string) error

	ListUsers(ctx context.Context, actor model.Identity) ([]model.User, error)
	UpdateUser(ctx context.Context, actor model.Identity, userID int64, upd model.UserUpdate) (*model.User, error)
	Notifications(ctx context.Context, actor model.Identity, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, actor model.Identity, userID, notificationID int64) error
	Broadcast(ctx context.Context, actor model.Identity, message string, targetIDs []int64) (int, error)

	ListProducts(ctx context.Context, actor model.Identity, includeInactive bool) ([]model.Product, error)
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	CreateProduct(ctx context.Context, actor model.Identity, p *model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, actor model.Identity, productID int64, upd model.ProductUpdate) (*model.Product, error)

	PaymentDetails(ctx context.Context) ([]model.PaymentDetail, error)
	UpdatePaymentDetails(ctx context.Context, actor model.Identity, details []model.PaymentDetail) error
	AdminContact(ctx context.Context) (string, error)
	UpdateAdminContact(ctx context.Context, actor model.Identity, contact string) error
}
