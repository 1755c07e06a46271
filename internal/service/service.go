// Package service реализует бизнес-логику маркетплейса Atom Point.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/atompoint/internal/auth"
	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/repository"
	"github.com/mmeshcher/atompoint/internal/validation"
)

const (
	welcomeMessage      = "Welcome to the new Atom Point Web!"
	adminContactKey     = "admin_contact"
	defaultAdminContact = "https://t.me/CEO_METAVERSE"
)

// Store описывает контракт доступа к данным, используемый сервисом.
type Store interface {
	WithTx(ctx context.Context, fn repository.TxFunc) error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, username, passwordHash string, securityDeposit int64, role model.Role) (*model.User, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, string, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, userID int64, upd model.UserUpdate) (*model.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)

	CreateNotification(ctx context.Context, userID int64, message string) error
	GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID int64) error

	GetPaymentDetails(ctx context.Context) ([]model.PaymentDetail, error)
	ReplacePaymentDetails(ctx context.Context, details []model.PaymentDetail) error
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Service содержит операции учётных записей, каталога и настроек.
type Service struct {
	store    Store
	tokens   *auth.TokenManager
	notifier Notifier
	logger   *zap.Logger
}

// NewService создаёт новый сервис.
func NewService(store Store, tokens *auth.TokenManager, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Register регистрирует пользователя и выдаёт ему токен.
func (s *Service) Register(ctx context.Context, username, password string, securityDeposit int64) (*model.AuthResult, error) {
	username = strings.TrimSpace(username)
	if err := validation.Username(username); err != nil {
		return nil, err
	}
	if err := validation.Password("password", password); err != nil {
		return nil, err
	}
	if securityDeposit < 0 {
		return nil, model.NewValidationError("securityAmount", "must not be negative")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hash, securityDeposit, model.RoleUser)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			if existing, _, lookupErr := s.store.GetUserByUsername(ctx, username); lookupErr == nil && existing.Banned {
				return nil, model.ErrForbidden
			}
		}
		return nil, err
	}

	s.notifier.Notify(user.ID, welcomeMessage)

	return s.issue(user)
}

// Login проверяет учётные данные и выдаёт токен.
func (s *Service) Login(ctx context.Context, username, password string) (*model.AuthResult, error) {
	user, hash, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(hash, password) {
		return nil, model.ErrInvalidCredentials
	}
	if user.Banned {
		return nil, model.ErrForbidden
	}

	return s.issue(user)
}

func (s *Service) issue(user *model.User) (*model.AuthResult, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &model.AuthResult{Token: token, User: user}, nil
}

// Profile возвращает данные вызывающего пользователя.
func (s *Service) Profile(ctx context.Context, id model.Identity) (*model.User, error) {
	return s.store.GetUser(ctx, id.UserID)
}

// ResetPassword задаёт пользователю новый пароль. Только для администратора.
func (s *Service) ResetPassword(ctx context.Context, actor model.Identity, userID int64, newPassword string) error {
	if !actor.IsAdmin() {
		return model.ErrForbidden
	}
	if err := validation.Password("newPassword", newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash)
}

// EnsureAdmin создаёт администратора с заданными учётными данными либо
// назначает существующему пользователю роль администратора и обновляет пароль.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	existing, _, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, model.ErrNotFound):
		user, err := s.store.CreateUser(ctx, username, hash, 0, model.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("create admin: %w", err)
		}
		s.logger.Info("bootstrap admin created", zap.Int64("userID", user.ID), zap.String("username", username))
		return user, nil
	case err != nil:
		return nil, fmt.Errorf("get admin: %w", err)
	}

	isAdmin, banned := true, false
	user, err := s.store.UpdateUser(ctx, existing.ID, model.UserUpdate{IsAdmin: &isAdmin, Banned: &banned})
	if err != nil {
		return nil, fmt.Errorf("promote admin: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, existing.ID, hash); err != nil {
		return nil, fmt.Errorf("update admin password: %w", err)
	}
	return user, nil
}

// ListUsers возвращает всех пользователей. Только для администратора.
func (s *Service) ListUsers(ctx context.Context, actor model.Identity) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	return s.store.ListUsers(ctx)
}

// UpdateUser блокирует пользователя или меняет его роль. Только для администратора.
func (s *Service) UpdateUser(ctx context.Context, actor model.Identity, userID int64, upd model.UserUpdate) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	if upd.Banned == nil && upd.IsAdmin == nil {
		return nil, model.NewValidationError("body", "nothing to update")
	}
	return s.store.UpdateUser(ctx, userID, upd)
}

// Notifications возвращает входящие пользователя. Чужие входящие доступны только администратору.
func (s *Service) Notifications(ctx context.Context, actor model.Identity, userID int64) ([]model.Notification, error) {
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	return s.store.GetNotificationsByUser(ctx, userID)
}

// MarkNotificationRead отмечает собственное уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, actor model.Identity, userID, notificationID int64) error {
	if actor.UserID != userID {
		return model.ErrForbidden
	}
	return s.store.MarkNotificationRead(ctx, userID, notificationID)
}

// Broadcast рассылает сообщение указанным пользователям, а при пустом списке всем.
// Возвращает число доставленных сообщений; несуществующие получатели пропускаются.
func (s *Service) Broadcast(ctx context.Context, actor model.Identity, message string, targetIDs []int64) (int, error) {
	if !actor.IsAdmin() {
		return 0, model.ErrForbidden
	}
	if err := validation.Message(message); err != nil {
		return 0, err
	}

	if len(targetIDs) == 0 {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return 0, err
		}
		for _, u := range users {
			targetIDs = append(targetIDs, u.ID)
		}
	}

	sent := 0
	seen := make(map[int64]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if err := s.store.CreateNotification(ctx, id, message); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				s.logger.Warn("broadcast recipient not found", zap.Int64("userID", id))
				continue
			}
			return sent, err
		}
		sent++
	}
	return sent, nil
}
