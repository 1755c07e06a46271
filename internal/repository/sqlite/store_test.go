package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/repository"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := New(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, second.Ping(context.Background()))
	require.NoError(t, second.Close())
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "hash", 50, model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(0), u.Balance)
	assert.Equal(t, int64(50), u.SecurityDeposit)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = repo.CreateUser(ctx, "alice", "hash", 0, model.RoleUser)
	assert.ErrorIs(t, err, model.ErrConflict)

	got, hash, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", hash)

	_, _, err = repo.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateUser_FlagsAreOptional(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "hash", 0, model.RoleUser)
	require.NoError(t, err)

	banned := true
	got, err := repo.UpdateUser(ctx, u.ID, model.UserUpdate{Banned: &banned})
	require.NoError(t, err)
	assert.True(t, got.Banned)
	assert.Equal(t, model.RoleUser, got.Role)

	admin := true
	got, err = repo.UpdateUser(ctx, u.ID, model.UserUpdate{IsAdmin: &admin})
	require.NoError(t, err)
	assert.True(t, got.Banned)
	assert.True(t, got.IsAdmin())

	_, err = repo.UpdateUser(ctx, 999, model.UserUpdate{Banned: &banned})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAdjustBalance_NeverNegative(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "hash", 0, model.RoleUser)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		balance, err := tx.AdjustBalance(ctx, u.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)

		_, err = tx.AdjustBalance(ctx, u.ID, -101)
		assert.ErrorIs(t, err, model.ErrInsufficientCredits)

		balance, err = tx.AdjustBalance(ctx, u.ID, -100)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)

		_, err = tx.AdjustBalance(ctx, 999, 10)
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	balance, err := repo.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "hash", 0, model.RoleUser)
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.AdjustBalance(ctx, u.ID, 500); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	balance, err := repo.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAdjustStock_NeverNegative(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, &model.Product{
		Name:     "Key",
		Category: "Games",
		Price:    decimal.RequireFromString("10.50"),
		Stock:    2,
		Active:   true,
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.5").Equal(p.Price))

	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.AdjustStock(ctx, p.ID, -3)
		assert.ErrorIs(t, err, model.ErrInsufficientStock)

		stock, err := tx.AdjustStock(ctx, p.ID, -2)
		require.NoError(t, err)
		assert.Equal(t, 0, stock)

		_, err = tx.AdjustStock(ctx, 999, 1)
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateProductDetails_PartialUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, &model.Product{
		Name:        "Key",
		Category:    "Games",
		Description: "old",
		Price:       decimal.NewFromInt(10),
		Stock:       1,
		Active:      true,
	})
	require.NoError(t, err)

	price := decimal.RequireFromString("12.25")
	inactive := false
	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		got, err := tx.UpdateProductDetails(ctx, p.ID, model.ProductUpdate{Price: &price, Active: &inactive})
		require.NoError(t, err)
		assert.Equal(t, "Key", got.Name)
		assert.Equal(t, "old", got.Description)
		assert.True(t, price.Equal(got.Price))
		assert.False(t, got.Active)
		return nil
	})
	require.NoError(t, err)

	active, err := repo.ListProducts(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateOrderStatus_CompareAndSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "hash", 0, model.RoleUser)
	require.NoError(t, err)

	var orderID int64
	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := tx.CreateOrder(ctx, &model.Order{
			UserID:        u.ID,
			Type:          model.OrderTypeCredit,
			Amount:        decimal.NewFromInt(100),
			Quantity:      1,
			Status:        model.OrderStatusPending,
			PaymentMethod: "card",
		})
		if err != nil {
			return err
		}
		orderID = o.ID
		assert.Nil(t, o.ProductID)
		return nil
	})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := tx.UpdateOrderStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusApproved)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusApproved, o.Status)

		_, err = tx.UpdateOrderStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusApproved)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)

		_, err = tx.GetOrderForUpdate(ctx, 999)
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	orders, err := repo.GetOrdersByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "alice", orders[0].Username)
	assert.Equal(t, "", orders[0].ProductName)
	assert.Equal(t, model.OrderStatusApproved, orders[0].Status)
}

func TestNotifications(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice, err := repo.CreateUser(ctx, "alice", "hash", 0, model.RoleUser)
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, "bob", "hash", 0, model.RoleUser)
	require.NoError(t, err)

	require.NoError(t, repo.CreateNotification(ctx, alice.ID, "first"))
	require.NoError(t, repo.CreateNotification(ctx, alice.ID, "second"))
	assert.ErrorIs(t, repo.CreateNotification(ctx, 999, "lost"), model.ErrNotFound)

	list, err := repo.GetNotificationsByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
	assert.False(t, list[0].Read)

	assert.ErrorIs(t, repo.MarkNotificationRead(ctx, bob.ID, list[0].ID), model.ErrNotFound)
	require.NoError(t, repo.MarkNotificationRead(ctx, alice.ID, list[0].ID))

	list, err = repo.GetNotificationsByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, list[0].Read)
}

func TestSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetSetting(ctx, "admin_contact")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, repo.PutSetting(ctx, "admin_contact", "@first"))
	require.NoError(t, repo.PutSetting(ctx, "admin_contact", "@second"))

	v, err := repo.GetSetting(ctx, "admin_contact")
	require.NoError(t, err)
	assert.Equal(t, "@second", v)

	require.NoError(t, repo.ReplacePaymentDetails(ctx, []model.PaymentDetail{
		{Method: "sbp", Name: "Ivan", Number: "+7900"},
		{Method: "card", Name: "Ivan", Number: "4242"},
	}))
	require.NoError(t, repo.ReplacePaymentDetails(ctx, []model.PaymentDetail{
		{Method: "card", Name: "Petr", Number: "5555"},
	}))

	details, err := repo.GetPaymentDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.PaymentDetail{{Method: "card", Name: "Petr", Number: "5555"}}, details)
}
