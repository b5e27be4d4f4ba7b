package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/auth"
	"Tutorhub/internal/core/users"
)

type memClients struct {
	byID map[uuid.UUID]*auth.Client
}

func (r *memClients) GetByID(ctx context.Context, id uuid.UUID) (*auth.Client, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrInvalidClient
	}
	return c, nil
}

func (r *memClients) Create(ctx context.Context, client *auth.Client) (*auth.Client, error) {
	r.byID[client.ID] = client
	return client, nil
}

type memTokens struct {
	grants  map[string]*auth.GrantToken
	bearers map[uuid.UUID]*auth.BearerToken
}

func newMemTokens() *memTokens {
	return &memTokens{grants: map[string]*auth.GrantToken{}, bearers: map[uuid.UUID]*auth.BearerToken{}}
}

func (r *memTokens) CreateGrant(ctx context.Context, grant *auth.GrantToken) error {
	r.grants[string(grant.CodeHash)] = grant
	return nil
}

func (r *memTokens) GetGrantByCodeHash(ctx context.Context, codeHash []byte) (*auth.GrantToken, error) {
	g, ok := r.grants[string(codeHash)]
	if !ok {
		return nil, auth.ErrInvalidGrant
	}
	return g, nil
}

func (r *memTokens) ExchangeGrant(ctx context.Context, codeHash []byte, token *auth.BearerToken) error {
	if _, ok := r.grants[string(codeHash)]; !ok {
		return auth.ErrInvalidGrant
	}
	delete(r.grants, string(codeHash))
	r.bearers[token.ID] = token
	return nil
}

func (r *memTokens) CreateBearer(ctx context.Context, token *auth.BearerToken) error {
	r.bearers[token.ID] = token
	return nil
}

func (r *memTokens) GetBearerByAccessHash(ctx context.Context, accessHash []byte) (*auth.BearerToken, error) {
	for _, t := range r.bearers {
		if string(t.AccessHash) == string(accessHash) {
			return t, nil
		}
	}
	return nil, auth.ErrInvalidToken
}

func (r *memTokens) GetBearerByRefreshHash(ctx context.Context, refreshHash []byte) (*auth.BearerToken, error) {
	for _, t := range r.bearers {
		if t.RefreshHash != nil && string(t.RefreshHash) == string(refreshHash) {
			return t, nil
		}
	}
	return nil, auth.ErrInvalidToken
}

func (r *memTokens) DeleteBearer(ctx context.Context, id uuid.UUID) error {
	delete(r.bearers, id)
	return nil
}

func (r *memTokens) CleanupExpired(ctx context.Context) error { return nil }

type stubUsers struct {
	user     *users.User
	password string
}

func (s *stubUsers) Register(ctx context.Context, req users.RegisterRequest) (*users.User, error) {
	return nil, nil
}

func (s *stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, users.ErrUserNotFound
}

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if s.user != nil && s.user.Email == email {
		return s.user, nil
	}
	return nil, users.ErrUserNotFound
}

func (s *stubUsers) ValidateCredentials(ctx context.Context, email, password string) (*users.User, error) {
	if password != s.password {
		return nil, users.ErrInvalidCredentials
	}
	return s.GetByEmail(ctx, email)
}

func (s *stubUsers) UpdateProfile(ctx context.Context, id uuid.UUID, req users.UpdateProfileRequest) (*users.User, error) {
	return nil, nil
}

func (s *stubUsers) DeleteAccount(ctx context.Context, id uuid.UUID, password string) error {
	return nil
}

func newOAuthTestRouter(t *testing.T) (http.Handler, *auth.Client, *users.User) {
	t.Helper()

	user := &users.User{ID: uuid.New(), Email: "alice@example.com", Role: users.RoleStudent}
	client := &auth.Client{
		ID:        uuid.New(),
		UserID:    user.ID,
		GrantType: auth.GrantPassword,
		Scope:     "read write",
	}

	clients := &memClients{byID: map[uuid.UUID]*auth.Client{client.ID: client}}
	service := auth.NewService(clients, newMemTokens(), &stubUsers{user: user, password: "hunter22"}, time.Hour, 100*time.Second)
	authMW := middleware.NewAuthMiddleware(service)

	return OAuthRoutes(service, authMW), client, user
}

func TestTokenEndpointFormBody(t *testing.T) {
	router, client, _ := newOAuthTestRouter(t)

	form := url.Values{
		"grant_type": {"password"},
		"username":   {"alice@example.com"},
		"password":   {"hunter22"},
		"client_id":  {client.ID.String()},
	}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.NotEmpty(t, body.RefreshToken)
	assert.Equal(t, 3600, body.ExpiresIn)
}

func TestTokenEndpointJSONBody(t *testing.T) {
	router, client, _ := newOAuthTestRouter(t)

	payload := map[string]string{
		"grant_type": "password",
		"username":   "alice@example.com",
		"password":   "hunter22",
		"client_id":  client.ID.String(),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestTokenEndpointErrors(t *testing.T) {
	router, client, _ := newOAuthTestRouter(t)

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("bad credentials are an invalid_grant", func(t *testing.T) {
		rec := post(url.Values{
			"grant_type": {"password"},
			"username":   {"alice@example.com"},
			"password":   {"wrong"},
			"client_id":  {client.ID.String()},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("unknown client is a 401", func(t *testing.T) {
		rec := post(url.Values{
			"grant_type": {"password"},
			"username":   {"alice@example.com"},
			"password":   {"hunter22"},
			"client_id":  {uuid.NewString()},
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_client")
	})
}

func TestAuthorizeRequiresBearerToken(t *testing.T) {
	router, client, _ := newOAuthTestRouter(t)

	form := url.Values{
		"response_type": {"code"},
		"client_id":     {client.ID.String()},
	}
	req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrantTypeListing(t *testing.T) {
	router, _, _ := newOAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/grant_types", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Authorization code", body["authorization_code"])
	assert.Equal(t, "Refresh token", body["refresh_token"])
}
