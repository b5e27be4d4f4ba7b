package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/auth"
)

// OAuthHandler handles the token authority's HTTP surface
type OAuthHandler struct {
	authService *auth.Service
}

func NewOAuthHandler(authService *auth.Service) *OAuthHandler {
	return &OAuthHandler{authService: authService}
}

// OAuthRoutes returns the /oauth route group. The authorize step sits
// behind bearer authentication: the resource owner approving the grant
// must already hold a session token.
func OAuthRoutes(authService *auth.Service, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewOAuthHandler(authService)
	r := chi.NewRouter()

	r.Post("/token", h.Token)
	r.With(authMW.Protected(nil)).Post("/authorize", h.Authorize)
	r.Get("/grant_types", h.GrantTypes)
	r.Get("/response_types", h.ResponseTypes)

	return r
}

// Token handles POST /oauth/token for all supported grant types and
// answers with the standard OAuth2 JSON bodies.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	params, err := tokenParams(r)
	if err != nil {
		writeOAuthError(w, &auth.OAuthError{Code: "invalid_request", Status: http.StatusBadRequest})
		return
	}

	req := auth.TokenRequest{
		GrantType:           params["grant_type"],
		Code:                params["code"],
		RedirectURI:         params["redirect_uri"],
		Username:            params["username"],
		Password:            params["password"],
		RefreshToken:        params["refresh_token"],
		Scope:               params["scope"],
		ClientID:            params["client_id"],
		ClientSecret:        params["client_secret"],
		AuthorizationHeader: r.Header.Get("Authorization"),
	}

	issued, err := h.authService.Token(r.Context(), req)
	if err != nil {
		writeOAuthError(w, auth.AsOAuthError(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	handlers.WriteJSON(w, http.StatusOK, issued)
}

// Authorize handles the code-issue step of the authorization-code flow.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	params, err := tokenParams(r)
	if err != nil {
		writeOAuthError(w, &auth.OAuthError{Code: "invalid_request", Status: http.StatusBadRequest})
		return
	}

	resp, err := h.authService.Authorize(r.Context(), auth.AuthorizeRequest{
		ResponseType: params["response_type"],
		ClientID:     params["client_id"],
		RedirectURI:  params["redirect_uri"],
		Scope:        params["scope"],
		UserID:       principal.User.ID,
	})
	if err != nil {
		writeOAuthError(w, auth.AsOAuthError(err))
		return
	}

	handlers.WriteJSON(w, http.StatusOK, resp)
}

// GrantTypes lists the grant types the authority understands.
func (h *OAuthHandler) GrantTypes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string)
	for _, g := range auth.GrantTypes() {
		out[string(g)] = g.Name()
	}
	handlers.WriteJSON(w, http.StatusOK, out)
}

// ResponseTypes lists the response types the authority understands.
func (h *OAuthHandler) ResponseTypes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string)
	for _, t := range auth.ResponseTypes() {
		out[string(t)] = t.Name()
	}
	handlers.WriteJSON(w, http.StatusOK, out)
}

// tokenParams accepts either form-encoded or JSON parameters; deployed
// clients send both shapes.
func tokenParams(r *http.Request) (map[string]string, error) {
	params := make(map[string]string)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		for k, v := range body {
			if s, ok := v.(string); ok {
				params[k] = s
			}
		}
		return params, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	return params, nil
}

func writeOAuthError(w http.ResponseWriter, oe *auth.OAuthError) {
	handlers.WriteJSON(w, oe.Status, oe)
}
