package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// TokenRequest is the parsed parameter set of a token endpoint call.
// Fields are populated from form or JSON parameters plus headers; which
// ones matter depends on grant_type.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	Username     string
	Password     string
	RefreshToken string
	Scope        string

	ClientID            string
	ClientSecret        string
	AuthorizationHeader string
}

// AuthorizeRequest is the parsed parameter set of the authorize step of
// the authorization-code flow.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string

	// UserID is the resource owner approving the grant, established by
	// the surrounding authentication layer.
	UserID uuid.UUID
}

// AuthorizeResponse carries the one-time plaintext code back to the
// redirect target.
type AuthorizeResponse struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// Token implements the grant-type dispatch of the /oauth/token endpoint.
// All four supported grants authenticate the client first, then issue a
// bearer token through the flow-specific path.
func (s *Service) Token(ctx context.Context, req TokenRequest) (*IssuedToken, error) {
	client, err := s.AuthenticateClient(ctx, ClientCredentials{
		ClientID:            req.ClientID,
		ClientSecret:        req.ClientSecret,
		AuthorizationHeader: req.AuthorizationHeader,
	})
	if err != nil {
		return nil, err
	}

	grantType := GrantType(req.GrantType)
	if !client.AllowsGrantType(grantType) {
		return nil, ErrUnsupportedGrantType
	}

	switch grantType {
	case GrantAuthorizationCode:
		if req.Code == "" {
			return nil, &OAuthError{Code: "invalid_request", Description: "code is required", Status: http.StatusBadRequest}
		}
		return s.ExchangeGrantCode(ctx, client, req.Code, req.RedirectURI)

	case GrantPassword:
		user, err := s.ValidateCredentials(ctx, req.Username, req.Password)
		if err != nil {
			return nil, ErrInvalidGrant
		}
		return s.IssueBearerToken(ctx, client, user.ID, strings.Fields(req.Scope), true)

	case GrantClientCredentials:
		// The token is bound to the client's owning user; no refresh token
		// is issued for this flow.
		return s.IssueBearerToken(ctx, client, client.UserID, strings.Fields(req.Scope), false)

	case GrantRefreshToken:
		if req.RefreshToken == "" {
			return nil, &OAuthError{Code: "invalid_request", Description: "refresh_token is required", Status: http.StatusBadRequest}
		}
		return s.RefreshBearerToken(ctx, client, req.RefreshToken, strings.Fields(req.Scope))

	default:
		return nil, ErrUnsupportedGrantType
	}
}

// Authorize implements the code-issue step of the authorization-code
// flow for an already-authenticated resource owner.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	if ResponseType(req.ResponseType) != ResponseCode {
		return nil, &OAuthError{Code: "unsupported_response_type", Status: http.StatusBadRequest}
	}

	id, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, ErrInvalidClient
	}
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrInvalidClient
	}
	if client.ResponseType != ResponseCode {
		return nil, &OAuthError{Code: "unauthorized_client", Status: http.StatusBadRequest}
	}

	code, err := s.IssueGrantCode(ctx, client, req.UserID, req.RedirectURI, strings.Fields(req.Scope))
	if err != nil {
		return nil, err
	}

	redirect := req.RedirectURI
	if redirect == "" {
		redirect = client.DefaultRedirectURI()
	}

	return &AuthorizeResponse{Code: code, RedirectURI: redirect}, nil
}
