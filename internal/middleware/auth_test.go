package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mmeshcher/atompoint/internal/auth"
	"github.com/mmeshcher/atompoint/internal/model"
)

type stubUsers struct {
	users map[int64]*model.User
	err   error
}

func (s *stubUsers) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return u, nil
}

func newTestAuth(t *testing.T, users UserLookup) (*AuthMiddleware, *auth.TokenManager) {
	t.Helper()

	tm, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	return NewAuthMiddleware(tm, users, zaptest.NewLogger(t)), tm
}

func TestAuthMiddleware(t *testing.T) {
	users := &stubUsers{users: map[int64]*model.User{
		42: {ID: 42, Username: "alice", Role: model.RoleUser},
	}}
	m, tm := newTestAuth(t, users)

	valid, err := tm.GenerateToken(42, model.RoleUser)
	require.NoError(t, err)
	unknown, err := tm.GenerateToken(7, model.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer garbage", wantStatus: http.StatusUnauthorized},
		{name: "unknown user", header: "Bearer " + unknown, wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := IdentityFromContext(r.Context())
				require.True(t, ok)
				got = id
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			m.Middleware(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, model.Identity{UserID: 42, Role: model.RoleUser}, got)
			} else {
				assert.JSONEq(t, `{"error":"`+errorText(tt.name)+`"}`, rec.Body.String())
			}
		})
	}
}

func errorText(name string) string {
	if name == "no header" || name == "not bearer" {
		return "authorization required"
	}
	return "invalid token"
}

func TestAuthMiddleware_RoleComesFromStore(t *testing.T) {
	users := &stubUsers{users: map[int64]*model.User{
		1: {ID: 1, Role: model.RoleUser},
	}}
	m, tm := newTestAuth(t, users)

	// Токен выпущен, когда пользователь ещё был администратором.
	token, err := tm.GenerateToken(1, model.RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	m.Middleware(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	}))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthMiddleware_StoreError(t *testing.T) {
	m, tm := newTestAuth(t, &stubUsers{err: errors.New("db down")})

	token, err := tm.GenerateToken(1, model.RoleUser)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		ctx        context.Context
		wantStatus int
	}{
		{name: "anonymous", ctx: context.Background(), wantStatus: http.StatusUnauthorized},
		{name: "user", ctx: WithIdentity(context.Background(), model.Identity{UserID: 1, Role: model.RoleUser}), wantStatus: http.StatusForbidden},
		{name: "admin", ctx: WithIdentity(context.Background(), model.Identity{UserID: 1, Role: model.RoleAdmin}), wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()

			RequireAdmin(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
