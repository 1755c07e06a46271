// Package middleware содержит HTTP middleware сервиса Atom Point.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/atompoint/internal/auth"
	"github.com/mmeshcher/atompoint/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// UserLookup загружает актуальные данные пользователя по идентификатору из токена.
type UserLookup interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

// AuthMiddleware проверяет bearer-токен и кладёт model.Identity в контекст запроса.
// Роль берётся из хранилища, а не из токена, поэтому снятие прав действует сразу.
type AuthMiddleware struct {
	tokens *auth.TokenManager
	users  UserLookup
	logger *zap.Logger
}

// NewAuthMiddleware создаёт middleware аутентификации.
func NewAuthMiddleware(tokens *auth.TokenManager, users UserLookup, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Middleware пропускает запрос дальше только с действительным токеном.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		claims, err := a.tokens.ParseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := a.users.GetUser(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			a.logger.Error("load user for token", zap.Error(err), zap.Int64("userID", claims.UserID))
			writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}

		ctx := WithIdentity(r.Context(), model.Identity{UserID: user.ID, Role: user.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin отвечает 403, если вызывающий не администратор. Ставится после Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, model.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity возвращает контекст с установленным вызывающим.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext извлекает вызывающего из контекста запроса.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
