package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"Tutorhub/internal/core/users"
)

const defaultAccessTokenTTL = time.Hour

// grantCodeTTL keeps authorization codes short-lived; a code is meant to
// be exchanged immediately after the authorize step.
const defaultGrantCodeTTL = 100 * time.Second

// Service is the token authority. Every privileged HTTP request and
// every websocket identify passes through ValidateBearerToken.
type Service struct {
	clients ClientRepository
	tokens  TokenRepository
	users   users.UserService

	accessTTL time.Duration
	grantTTL  time.Duration

	// now is injectable so tests can move the clock.
	now func() time.Time
}

// NewService creates the token authority. Zero TTLs fall back to the
// defaults (1h access tokens, 100s grant codes).
func NewService(clients ClientRepository, tokens TokenRepository, userService users.UserService, accessTTL, grantTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	if grantTTL <= 0 {
		grantTTL = defaultGrantCodeTTL
	}
	return &Service{
		clients:   clients,
		tokens:    tokens,
		users:     userService,
		accessTTL: accessTTL,
		grantTTL:  grantTTL,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Tests use this to expire tokens.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ClientCredentials carries client authentication material from a
// request: either explicit fields or an HTTP Basic Authorization header.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string

	// AuthorizationHeader is consulted when the explicit fields are empty
	// (RFC 6749 section 2.3.1).
	AuthorizationHeader string
}

// AuthenticateClient resolves and verifies a client. Clients registered
// without a secret verify as public clients. Secret comparison is
// bcrypt's constant-time check; failures collapse into ErrInvalidClient.
func (s *Service) AuthenticateClient(ctx context.Context, creds ClientCredentials) (*Client, error) {
	clientID, secret := creds.ClientID, creds.ClientSecret
	if clientID == "" {
		clientID, secret = decodeBasicAuth(creds.AuthorizationHeader)
	}

	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, ErrInvalidClient
	}

	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		slog.Debug("client authentication failed, client not found", "client_id", id)
		return nil, ErrInvalidClient
	}

	if client.Public() {
		return client, nil
	}

	if err := bcrypt.CompareHashAndPassword(client.SecretHash, []byte(secret)); err != nil {
		slog.Debug("client authentication failed, secret mismatch", "client_id", id)
		return nil, ErrInvalidClient
	}

	return client, nil
}

// IssueGrantCode generates an authorization code for the client/user
// pair and stores its digest with a short expiry. The plaintext code is
// returned exactly once and is not retrievable afterwards.
func (s *Service) IssueGrantCode(ctx context.Context, client *Client, userID uuid.UUID, redirectURI string, scopes []string) (string, error) {
	if redirectURI == "" {
		redirectURI = client.DefaultRedirectURI()
	}
	if !client.AllowsRedirectURI(redirectURI) {
		return "", ErrInvalidRedirectURI
	}
	if len(scopes) == 0 {
		scopes = client.Scopes()
	} else if !scopeSubset(scopes, client.Scopes()) {
		return "", ErrInvalidScope
	}

	code := newSecret()
	grant := &GrantToken{
		ID:          uuid.New(),
		ClientID:    client.ID,
		UserID:      userID,
		CodeHash:    digest(code),
		RedirectURI: redirectURI,
		Scope:       strings.Join(scopes, " "),
		ExpiresAt:   s.now().Add(s.grantTTL),
	}

	if err := s.tokens.CreateGrant(ctx, grant); err != nil {
		return "", fmt.Errorf("failed to persist grant code: %w", err)
	}

	slog.Debug("issued grant code", "client_id", client.ID, "user_id", userID)
	return code, nil
}

// ExchangeGrantCode consumes an authorization code and issues a bearer
// token bound to the same user, client and scope. Client, redirect and
// expiry are checked against a plain read first; the consume and the
// bearer insert then happen as one storage-level unit, so a failed
// exchange never burns the code. The first successful exchange wins,
// any repeat sees ErrInvalidGrant.
func (s *Service) ExchangeGrantCode(ctx context.Context, client *Client, code, redirectURI string) (*IssuedToken, error) {
	hash := digest(code)
	grant, err := s.tokens.GetGrantByCodeHash(ctx, hash)
	if err != nil {
		return nil, ErrInvalidGrant
	}

	if grant.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}
	if grant.RedirectURI != redirectURI {
		return nil, ErrInvalidRedirectURI
	}
	if s.now().After(grant.ExpiresAt) {
		return nil, ErrInvalidGrant
	}

	token, issued := s.buildBearer(client, grant.UserID, grant.Scopes(), true)
	if err := s.tokens.ExchangeGrant(ctx, hash, token); err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("failed to exchange grant code: %w", err)
	}

	slog.Debug("exchanged grant code", "client_id", client.ID, "user_id", grant.UserID)
	return issued, nil
}

// IssueBearerToken stores a new access/refresh digest pair and returns
// the plaintext tokens once. withRefresh controls whether a refresh
// token accompanies the access token.
func (s *Service) IssueBearerToken(ctx context.Context, client *Client, userID uuid.UUID, scopes []string, withRefresh bool) (*IssuedToken, error) {
	token, issued := s.buildBearer(client, userID, scopes, withRefresh)

	if err := s.tokens.CreateBearer(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist bearer token: %w", err)
	}

	slog.Debug("issued bearer token", "client_id", client.ID, "user_id", userID, "scope", issued.Scope)
	return issued, nil
}

// buildBearer generates the token pair without persisting anything: the
// storage row with the digests, and the plaintext response alongside it.
func (s *Service) buildBearer(client *Client, userID uuid.UUID, scopes []string, withRefresh bool) (*BearerToken, *IssuedToken) {
	if len(scopes) == 0 {
		scopes = client.Scopes()
	}
	scope := strings.Join(scopes, " ")

	access := newSecret()
	token := &BearerToken{
		ID:         uuid.New(),
		ClientID:   client.ID,
		UserID:     userID,
		AccessHash: digest(access),
		Scope:      scope,
		ExpiresAt:  s.now().Add(s.accessTTL),
	}

	var refresh string
	if withRefresh {
		refresh = newSecret()
		token.RefreshHash = digest(refresh)
	}

	return token, &IssuedToken{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		Scope:        scope,
		ExpiresIn:    int(s.accessTTL / time.Second),
	}
}

// ValidateBearerToken authenticates a presented access token and checks
// it against the required scopes. An empty required set accepts any
// valid token. Expiry is evaluated at validation time.
func (s *Service) ValidateBearerToken(ctx context.Context, token string, requiredScopes []string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	hash := digest(token)
	stored, err := s.tokens.GetBearerByAccessHash(ctx, hash)
	if err != nil || !digestEqual(stored.AccessHash, hash) {
		return nil, ErrInvalidToken
	}

	if s.now().After(stored.ExpiresAt) {
		return nil, ErrExpiredToken
	}

	if len(requiredScopes) > 0 && !scopesIntersect(stored.Scopes(), requiredScopes) {
		return nil, ErrInsufficientScope
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	client, err := s.clients.GetByID(ctx, stored.ClientID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Principal{User: user, Client: client, Scopes: stored.Scopes()}, nil
}

// RefreshBearerToken exchanges a refresh token for a new bearer token.
// The refresh token must belong to the calling client. The original
// scope carries over unless the caller narrows it; the consumed bearer
// row is deleted after the replacement is stored.
func (s *Service) RefreshBearerToken(ctx context.Context, client *Client, refreshToken string, requestedScopes []string) (*IssuedToken, error) {
	stored, err := s.tokens.GetBearerByRefreshHash(ctx, digest(refreshToken))
	if err != nil {
		return nil, ErrInvalidGrant
	}

	if stored.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}

	scopes := stored.Scopes()
	if len(requestedScopes) > 0 {
		if !scopeSubset(requestedScopes, scopes) {
			return nil, ErrInvalidScope
		}
		scopes = requestedScopes
	}

	issued, err := s.IssueBearerToken(ctx, client, stored.UserID, scopes, true)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.DeleteBearer(ctx, stored.ID); err != nil {
		// The old row still expires on its own; log and carry on.
		slog.Warn("failed to delete refreshed bearer token", "token_id", stored.ID, "error", err)
	}

	return issued, nil
}

// ValidateCredentials verifies a username/password pair for the password
// grant by delegating to the user store.
func (s *Service) ValidateCredentials(ctx context.Context, username, password string) (*users.User, error) {
	return s.users.ValidateCredentials(ctx, username, password)
}

// CleanupExpired reaps expired grant and bearer rows. Safe to call from
// a background goroutine; validity never depends on it.
func (s *Service) CleanupExpired(ctx context.Context) error {
	return s.tokens.CleanupExpired(ctx)
}

// BearerFromHeader extracts the token from an Authorization header.
// Returns "" when the header is missing or not a bearer scheme.
func BearerFromHeader(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// decodeBasicAuth splits an HTTP Basic Authorization header into
// username and password. Malformed headers yield empty strings.
func decodeBasicAuth(header string) (string, string) {
	if !strings.HasPrefix(header, "Basic ") {
		return "", ""
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", ""
	}
	username, password, found := strings.Cut(string(raw), ":")
	if !found {
		return "", ""
	}
	return username, password
}

// scopesIntersect reports whether the two scope sets share any member.
func scopesIntersect(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// scopeSubset reports whether every member of sub is present in super.
func scopeSubset(sub, super []string) bool {
	set := make(map[string]struct{}, len(super))
	for _, s := range super {
		set[s] = struct{}{}
	}
	for _, s := range sub {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
