package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"Tutorhub/internal/core/users"
)

// GrantType identifies an OAuth2 grant flow.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
	GrantPassword          GrantType = "password"
	GrantClientCredentials GrantType = "client_credentials"
	GrantDeviceCode        GrantType = "device_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

// GrantTypes lists every grant type in wire order.
func GrantTypes() []GrantType {
	return []GrantType{
		GrantAuthorizationCode,
		GrantImplicit,
		GrantPassword,
		GrantClientCredentials,
		GrantDeviceCode,
		GrantRefreshToken,
	}
}

// Name returns the human-readable grant type name used by listing endpoints.
func (g GrantType) Name() string {
	s := strings.ReplaceAll(string(g), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ResponseType identifies an OAuth2 authorization response type.
type ResponseType string

const ResponseCode ResponseType = "code"

func ResponseTypes() []ResponseType {
	return []ResponseType{ResponseCode}
}

func (r ResponseType) Name() string {
	if r == ResponseCode {
		return "Authorization code"
	}
	return ""
}

// Client is a registered OAuth2 client. SecretHash is a bcrypt digest;
// clients with no stored secret are public clients.
type Client struct {
	ID           uuid.UUID
	SecretHash   []byte
	UserID       uuid.UUID
	GrantType    GrantType
	ResponseType ResponseType
	Scope        string
	RedirectURIs []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public reports whether the client was registered without a secret.
func (c *Client) Public() bool {
	return len(c.SecretHash) == 0
}

// Scopes splits the stored space-separated scope string.
func (c *Client) Scopes() []string {
	return strings.Fields(c.Scope)
}

// DefaultRedirectURI returns the first registered redirect URI, or "".
func (c *Client) DefaultRedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}

// AllowsRedirectURI reports whether uri is on the client's whitelist.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowsGrantType reports whether the client may use the given grant.
// Refresh is always permitted alongside the registered grant type.
func (c *Client) AllowsGrantType(g GrantType) bool {
	return g == c.GrantType || g == GrantRefreshToken
}

// GrantToken is a stored authorization code. Only the SHA3-512 digest of
// the code is kept; the plaintext is returned once at issue time.
type GrantToken struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	UserID          uuid.UUID
	CodeHash        []byte
	RedirectURI     string
	Scope           string
	ExpiresAt       time.Time
	Challenge       string
	ChallengeMethod string
	CreatedAt       time.Time
}

func (g *GrantToken) Scopes() []string {
	return strings.Fields(g.Scope)
}

// BearerToken is a stored access/refresh token pair. Both tokens are
// kept only as SHA3-512 digests; the access digest is unique across all
// rows. RefreshHash is nil for flows that issue no refresh token.
type BearerToken struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	UserID      uuid.UUID
	AccessHash  []byte
	RefreshHash []byte
	Scope       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (t *BearerToken) Scopes() []string {
	return strings.Fields(t.Scope)
}

// Principal is the authenticated identity bound to a validated token.
type Principal struct {
	User   *users.User
	Client *Client
	Scopes []string
}

// IssuedToken is the one-time plaintext view of a freshly issued bearer
// token, shaped for the OAuth2 token response body.
type IssuedToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}
