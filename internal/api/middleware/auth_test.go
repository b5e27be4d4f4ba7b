package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tutorhub/internal/core/auth"
	"Tutorhub/internal/core/users"
)

// stubValidator resolves a single known token to a fixed principal.
type stubValidator struct {
	token     string
	principal *auth.Principal
	err       error
}

func (v *stubValidator) ValidateBearerToken(ctx context.Context, token string, requiredScopes []string) (*auth.Principal, error) {
	if v.err != nil {
		return nil, v.err
	}
	if token != v.token {
		return nil, auth.ErrInvalidToken
	}
	return v.principal, nil
}

func protectedRequest(t *testing.T, mw *AuthMiddleware, header string, scopes []string, roles ...users.Role) (*httptest.ResponseRecorder, *auth.Principal) {
	t.Helper()

	var seen *auth.Principal
	handler := mw.Protected(scopes, roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestProtected(t *testing.T) {
	principal := &auth.Principal{
		User:   &users.User{ID: uuid.New(), Role: users.RoleStudent},
		Scopes: []string{"read"},
	}
	mw := NewAuthMiddleware(&stubValidator{token: "good", principal: principal})

	t.Run("valid token passes and exposes the principal", func(t *testing.T) {
		rec, seen := protectedRequest(t, mw, "Bearer good", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, principal.User.ID, seen.User.ID)
	})

	t.Run("missing header", func(t *testing.T) {
		rec, _ := protectedRequest(t, mw, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		rec, _ := protectedRequest(t, mw, "Basic abc", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec, _ := protectedRequest(t, mw, "Bearer stolen", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewAuthMiddleware(&stubValidator{err: auth.ErrExpiredToken})
		rec, _ := protectedRequest(t, expired, "Bearer good", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "token expired")
	})

	t.Run("insufficient scope", func(t *testing.T) {
		scoped := NewAuthMiddleware(&stubValidator{err: auth.ErrInsufficientScope})
		rec, _ := protectedRequest(t, scoped, "Bearer good", []string{"admin"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("role allowed", func(t *testing.T) {
		rec, _ := protectedRequest(t, mw, "Bearer good", nil, users.RoleStudent, users.RoleTutor)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("role mismatch", func(t *testing.T) {
		rec, _ := protectedRequest(t, mw, "Bearer good", nil, users.RoleAdmin)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetPrincipalOutsideProtected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetPrincipal(req))
}

func TestWithTestPrincipal(t *testing.T) {
	principal := &auth.Principal{User: &users.User{ID: uuid.New()}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithTestPrincipal(req.Context(), principal))
	assert.Equal(t, principal, GetPrincipal(req))
}
