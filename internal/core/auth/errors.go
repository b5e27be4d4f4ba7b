package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the token authority. Handlers map these onto
// OAuth2 error bodies and HTTP status codes.
var (
	// ErrInvalidClient is returned when client authentication fails
	ErrInvalidClient = errors.New("invalid_client")

	// ErrInvalidGrant is returned for a bad, expired or already-consumed
	// authorization code or refresh token
	ErrInvalidGrant = errors.New("invalid_grant")

	// ErrInvalidToken is returned when a presented access token is unknown
	ErrInvalidToken = errors.New("invalid_token")

	// ErrExpiredToken is returned when a presented access token is past expiry
	ErrExpiredToken = errors.New("token_expired")

	// ErrInsufficientScope is returned when a token carries none of the
	// scopes an endpoint requires
	ErrInsufficientScope = errors.New("insufficient_scope")

	// ErrForbiddenRole is returned when the token is valid but the bound
	// user's role is not permitted for the endpoint
	ErrForbiddenRole = errors.New("forbidden")

	// ErrUnsupportedGrantType is returned when the requested grant type is
	// unknown or not allowed for the client
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")

	// ErrInvalidScope is returned when requested scopes exceed what the
	// client or original token was granted
	ErrInvalidScope = errors.New("invalid_scope")

	// ErrInvalidRedirectURI is returned when a redirect URI is not on the
	// client's whitelist or does not match the grant
	ErrInvalidRedirectURI = errors.New("invalid redirect uri")
)

// OAuthError is the wire-level error shape of the token endpoint,
// carrying the status code the response must use.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// AsOAuthError maps a token-authority error onto its OAuth2 wire form.
func AsOAuthError(err error) *OAuthError {
	var oe *OAuthError
	if errors.As(err, &oe) {
		return oe
	}

	switch {
	case errors.Is(err, ErrInvalidClient):
		return &OAuthError{Code: "invalid_client", Status: http.StatusUnauthorized}
	case errors.Is(err, ErrInvalidGrant):
		return &OAuthError{Code: "invalid_grant", Status: http.StatusBadRequest}
	case errors.Is(err, ErrUnsupportedGrantType):
		return &OAuthError{Code: "unsupported_grant_type", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInvalidScope):
		return &OAuthError{Code: "invalid_scope", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInvalidRedirectURI):
		return &OAuthError{Code: "invalid_grant", Description: "redirect uri mismatch", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		return &OAuthError{Code: "invalid_token", Status: http.StatusUnauthorized}
	case errors.Is(err, ErrInsufficientScope):
		return &OAuthError{Code: "insufficient_scope", Status: http.StatusForbidden}
	default:
		return &OAuthError{Code: "server_error", Status: http.StatusInternalServerError}
	}
}
