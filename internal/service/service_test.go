package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mmeshcher/atompoint/internal/auth"
	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/repository/sqlite"
)

type serviceEnv struct {
	repo     *sqlite.Repository
	tokens   *auth.TokenManager
	notifier *recordingNotifier
	svc      *Service
	admin    model.Identity
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "service.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc := NewService(repo, tokens, notifier, logger)

	admin, err := svc.EnsureAdmin(context.Background(), "root", "rootpass")
	require.NoError(t, err)

	return &serviceEnv{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		svc:      svc,
		admin:    model.Identity{UserID: admin.ID, Role: model.RoleAdmin},
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "  alice ", "secret1", 25)
	require.NoError(t, err)
	assert.Equal(t, "alice", reg.User.Username)
	assert.Equal(t, int64(0), reg.User.Balance)
	assert.Equal(t, int64(25), reg.User.SecurityDeposit)
	assert.Equal(t, model.RoleUser, reg.User.Role)

	claims, err := env.tokens.ParseToken(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.Equal(t, model.RoleUser, claims.Role)

	assert.Equal(t, []sentMessage{{userID: reg.User.ID, text: welcomeMessage}}, env.notifier.messages())

	login, err := env.svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	_, err = env.svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = env.svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		deposit  int64
	}{
		{name: "short username", username: "al", password: "secret1"},
		{name: "blank username", username: "   ", password: "secret1"},
		{name: "short password", username: "alice", password: "123"},
		{name: "negative deposit", username: "alice", password: "secret1", deposit: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newServiceEnv(t)

			_, err := env.svc.Register(context.Background(), tt.username, tt.password, tt.deposit)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
			assert.Empty(t, env.notifier.messages())
		})
	}
}

func TestRegister_DuplicateAndBanned(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "alice", "secret1", 0)
	require.NoError(t, err)

	_, err = env.svc.Register(ctx, "alice", "secret2", 0)
	assert.ErrorIs(t, err, model.ErrConflict)

	banned := true
	_, err = env.svc.UpdateUser(ctx, env.admin, reg.User.ID, model.UserUpdate{Banned: &banned})
	require.NoError(t, err)

	_, err = env.svc.Register(ctx, "alice", "secret2", 0)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = env.svc.Login(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestEnsureAdmin_PromotesExistingUser(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "boss", "secret1", 0)
	require.NoError(t, err)

	user, err := env.svc.EnsureAdmin(ctx, "boss", "newsecret")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)
	assert.Equal(t, model.RoleAdmin, user.Role)

	_, err = env.svc.Login(ctx, "boss", "secret1")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	login, err := env.svc.Login(ctx, "boss", "newsecret")
	require.NoError(t, err)
	assert.True(t, login.User.IsAdmin())

	again, err := env.svc.EnsureAdmin(ctx, "root", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, env.admin.UserID, again.ID)
}

func TestResetPassword(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "alice", "secret1", 0)
	require.NoError(t, err)
	alice := model.Identity{UserID: reg.User.ID, Role: model.RoleUser}

	err = env.svc.ResetPassword(ctx, alice, reg.User.ID, "another1")
	assert.ErrorIs(t, err, model.ErrForbidden)

	err = env.svc.ResetPassword(ctx, env.admin, reg.User.ID, "123")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	err = env.svc.ResetPassword(ctx, env.admin, reg.User.ID+100, "another1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, env.svc.ResetPassword(ctx, env.admin, reg.User.ID, "another1"))

	_, err = env.svc.Login(ctx, "alice", "another1")
	assert.NoError(t, err)
}

func TestUsersAdministration(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Register(ctx, "alice", "secret1", 0)
	require.NoError(t, err)
	alice := model.Identity{UserID: reg.User.ID, Role: model.RoleUser}

	_, err = env.svc.ListUsers(ctx, alice)
	assert.ErrorIs(t, err, model.ErrForbidden)

	users, err := env.svc.ListUsers(ctx, env.admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = env.svc.UpdateUser(ctx, env.admin, reg.User.ID, model.UserUpdate{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	promote := true
	_, err = env.svc.UpdateUser(ctx, alice, reg.User.ID, model.UserUpdate{IsAdmin: &promote})
	assert.ErrorIs(t, err, model.ErrForbidden)

	updated, err := env.svc.UpdateUser(ctx, env.admin, reg.User.ID, model.UserUpdate{IsAdmin: &promote})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)
	assert.False(t, updated.Banned)

	profile, err := env.svc.Profile(ctx, alice)
	require.NoError(t, err)
	assert.True(t, profile.IsAdmin())
}

func TestNotificationsAccess(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	a, err := env.svc.Register(ctx, "alice", "secret1", 0)
	require.NoError(t, err)
	b, err := env.svc.Register(ctx, "bob", "secret1", 0)
	require.NoError(t, err)
	alice := model.Identity{UserID: a.User.ID, Role: model.RoleUser}

	require.NoError(t, env.repo.CreateNotification(ctx, a.User.ID, "hello"))
	require.NoError(t, env.repo.CreateNotification(ctx, b.User.ID, "hi bob"))

	_, err = env.svc.Notifications(ctx, alice, b.User.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	own, err := env.svc.Notifications(ctx, alice, a.User.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "hello", own[0].Message)
	assert.False(t, own[0].Read)

	bobs, err := env.svc.Notifications(ctx, env.admin, b.User.ID)
	require.NoError(t, err)
	require.Len(t, bobs, 1)

	err = env.svc.MarkNotificationRead(ctx, env.admin, b.User.ID, bobs[0].ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	err = env.svc.MarkNotificationRead(ctx, alice, a.User.ID, bobs[0].ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, env.svc.MarkNotificationRead(ctx, alice, a.User.ID, own[0].ID))

	own, err = env.svc.Notifications(ctx, alice, a.User.ID)
	require.NoError(t, err)
	assert.True(t, own[0].Read)
}

func TestBroadcast(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	a, err := env.svc.Register(ctx, "alice", "secret1", 0)
	require.NoError(t, err)
	b, err := env.svc.Register(ctx, "bob", "secret1", 0)
	require.NoError(t, err)
	alice := model.Identity{UserID: a.User.ID, Role: model.RoleUser}

	_, err = env.svc.Broadcast(ctx, alice, "hi", nil)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = env.svc.Broadcast(ctx, env.admin, "  ", nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	sent, err := env.svc.Broadcast(ctx, env.admin, "maintenance", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	sent, err = env.svc.Broadcast(ctx, env.admin, "just you", []int64{b.User.ID, b.User.ID, b.User.ID + 100})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	bobs, err := env.repo.GetNotificationsByUser(ctx, b.User.ID)
	require.NoError(t, err)
	require.Len(t, bobs, 2)
	assert.Equal(t, "just you", bobs[0].Message)
	assert.Equal(t, "maintenance", bobs[1].Message)

	alices, err := env.repo.GetNotificationsByUser(ctx, a.User.ID)
	require.NoError(t, err)
	require.Len(t, alices, 1)
}

func TestCatalog(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	user := model.Identity{UserID: env.admin.UserID + 100, Role: model.RoleUser}

	_, err := env.svc.CreateProduct(ctx, user, &model.Product{Name: "Key", Category: "Games"})
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = env.svc.CreateProduct(ctx, env.admin, &model.Product{Name: " ", Category: "Games"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.svc.CreateProduct(ctx, env.admin, &model.Product{Name: "Key", Category: "Games", Stock: -1})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.svc.CreateProduct(ctx, env.admin, &model.Product{Name: "Key", Category: "Games", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	p, err := env.svc.CreateProduct(ctx, env.admin, &model.Product{
		Name:     "Key",
		Category: "Games",
		Price:    decimal.RequireFromString("9.99"),
		Stock:    3,
		Active:   true,
	})
	require.NoError(t, err)

	hidden, err := env.svc.CreateProduct(ctx, env.admin, &model.Product{Name: "Beta", Category: "Games", Stock: 1})
	require.NoError(t, err)

	visible, err := env.svc.ListProducts(ctx, user, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, p.ID, visible[0].ID)

	_, err = env.svc.ListProducts(ctx, user, true)
	assert.ErrorIs(t, err, model.ErrForbidden)

	all, err := env.svc.ListProducts(ctx, env.admin, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := env.svc.GetProduct(ctx, hidden.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestUpdateProduct_StockDelta(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	p, err := env.svc.CreateProduct(ctx, env.admin, &model.Product{Name: "Key", Category: "Games", Stock: 3, Active: true})
	require.NoError(t, err)

	price := decimal.NewFromInt(15)
	updated, err := env.svc.UpdateProduct(ctx, env.admin, p.ID, model.ProductUpdate{Price: &price, StockDelta: 4})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)
	assert.True(t, price.Equal(updated.Price))

	_, err = env.svc.UpdateProduct(ctx, env.admin, p.ID, model.ProductUpdate{Price: &price, StockDelta: -8})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	got, err := env.repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	negative := decimal.NewFromInt(-1)
	_, err = env.svc.UpdateProduct(ctx, env.admin, p.ID, model.ProductUpdate{Price: &negative})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.svc.UpdateProduct(ctx, env.admin, p.ID+100, model.ProductUpdate{StockDelta: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = env.svc.UpdateProduct(ctx, model.Identity{UserID: 1, Role: model.RoleUser}, p.ID, model.ProductUpdate{})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestSettings(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	user := model.Identity{UserID: env.admin.UserID + 100, Role: model.RoleUser}

	contact, err := env.svc.AdminContact(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultAdminContact, contact)

	assert.ErrorIs(t, env.svc.UpdateAdminContact(ctx, user, "@boss"), model.ErrForbidden)
	assert.ErrorIs(t, env.svc.UpdateAdminContact(ctx, env.admin, " "), model.ErrInvalidInput)
	require.NoError(t, env.svc.UpdateAdminContact(ctx, env.admin, " @boss "))

	contact, err = env.svc.AdminContact(ctx)
	require.NoError(t, err)
	assert.Equal(t, "@boss", contact)

	details := []model.PaymentDetail{
		{Method: "card", Name: "Ivan I.", Number: "4561 2612 1234 5467"},
		{Method: "sbp", Name: "Ivan I.", Number: "+79990000000"},
	}
	assert.ErrorIs(t, env.svc.UpdatePaymentDetails(ctx, user, details), model.ErrForbidden)

	bad := []model.PaymentDetail{{Method: "card", Name: "Ivan I.", Number: "4561 2612 1234 5464"}}
	assert.ErrorIs(t, env.svc.UpdatePaymentDetails(ctx, env.admin, bad), model.ErrInvalidInput)

	dup := []model.PaymentDetail{details[1], details[1]}
	assert.ErrorIs(t, env.svc.UpdatePaymentDetails(ctx, env.admin, dup), model.ErrInvalidInput)

	require.NoError(t, env.svc.UpdatePaymentDetails(ctx, env.admin, details))

	got, err := env.svc.PaymentDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, details, got)

	require.NoError(t, env.svc.UpdatePaymentDetails(ctx, env.admin, details[1:]))
	got, err = env.svc.PaymentDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, details[1:], got)
}
