package repository

import (
	"context"

	"github.com/mmeshcher/atompoint/internal/model"
)

// Ledger хранит балансы пользователей. Баланс меняется только через
// AdjustBalance; результат никогда не бывает отрицательным.
type Ledger interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error)
}

// Catalog хранит товары. Остаток меняется только через AdjustStock;
// результат никогда не бывает отрицательным.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (int, error)
}

// CatalogEditor изменяет описание, цену и видимость товара.
type CatalogEditor interface {
	UpdateProductDetails(ctx context.Context, productID int64, upd model.ProductUpdate) (*model.Product, error)
}

// OrderLog хранит заказы. После создания у заказа меняется только статус.
type OrderLog interface {
	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (*model.Order, error)
}

// Tx объединяет операции, выполняемые в рамках одной транзакции БД.
type Tx interface {
	Ledger
	Catalog
	CatalogEditor
	OrderLog
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

// TxFunc выполняется внутри транзакции. Возврат ошибки откатывает все изменения.
// Функция может быть вызвана повторно, если транзакция прервана конфликтом блокировок.
type TxFunc func(ctx context.Context, tx Tx) error
