package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/core/auth"
	"Tutorhub/internal/core/users"
)

// Context keys for storing the authenticated principal
type contextKey string

const principalKey contextKey = "principal"

// TokenValidator is the slice of the token authority the middleware needs.
type TokenValidator interface {
	ValidateBearerToken(ctx context.Context, token string, requiredScopes []string) (*auth.Principal, error)
}

// AuthMiddleware enforces bearer-token authentication for protected
// routes. Every privileged request passes through here before any
// handler runs.
type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Protected requires a valid bearer token carrying at least one of the
// given scopes (empty scopes accepts any valid token) and, when roles
// are given, one of the listed roles. 401 for token failures, 403 for
// role mismatch.
func (m *AuthMiddleware) Protected(scopes []string, roles ...users.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerFromHeader(r.Header.Get("Authorization"))
			if token == "" {
				handlers.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			principal, err := m.validator.ValidateBearerToken(r.Context(), token, scopes)
			if err != nil {
				slog.Debug("request authentication failed",
					"method", r.Method, "path", r.URL.Path, "error", err)
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					handlers.WriteError(w, http.StatusUnauthorized, "token expired")
				case errors.Is(err, auth.ErrInsufficientScope):
					handlers.WriteError(w, http.StatusForbidden, "insufficient scope")
				default:
					handlers.WriteError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			if len(roles) > 0 && !roleAllowed(principal.User.Role, roles) {
				handlers.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roleAllowed(role users.Role, allowed []users.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// GetPrincipal extracts the authenticated principal from the request
// context. Returns nil outside a Protected route.
func GetPrincipal(r *http.Request) *auth.Principal {
	p, _ := r.Context().Value(principalKey).(*auth.Principal)
	return p
}

// WithTestPrincipal injects a principal into the context. Tests only.
func WithTestPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
