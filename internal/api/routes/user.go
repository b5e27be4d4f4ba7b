package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/users"
)

// UserHandler handles registration, login and the profile endpoint
type UserHandler struct {
	userService users.UserService
}

func NewUserHandler(userService users.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRoutes returns the account route group.
func UserRoutes(userService users.UserService, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewUserHandler(userService)
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.With(authMW.Protected(nil)).Get("/profile", h.Profile)

	return r
}

// Register handles POST /register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}

	_, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeUserError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusCreated, map[string]string{"msg": "registered"})
}

// Login handles POST /login: a bare credential check used by clients
// before they start the OAuth password grant.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}
	if req.Email == "" || req.Password == "" {
		handlers.WriteError(w, http.StatusBadRequest, "missing following required field(s): email, password")
		return
	}

	if _, err := h.userService.ValidateCredentials(r.Context(), req.Email, req.Password); err != nil {
		handlers.WriteError(w, http.StatusUnauthorized, users.ErrInvalidCredentials.Error())
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged in"})
}

// Profile handles GET /profile for the authenticated principal.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	user, err := h.userService.GetByID(r.Context(), principal.User.ID)
	if err != nil {
		handlers.WriteError(w, http.StatusNotFound, "Profile not found!")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, users.ProfileView(user, true))
}

// writeUserError maps user domain errors onto HTTP statuses.
func writeUserError(w http.ResponseWriter, err error) {
	var invalidRole *users.InvalidRoleError
	var invalidGender *users.InvalidGenderError
	var missing *users.MissingFieldsError

	switch {
	case errors.Is(err, users.ErrEmailAlreadyTaken):
		handlers.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, users.ErrUserNotFound):
		handlers.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		handlers.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &invalidRole), errors.As(err, &invalidGender), errors.As(err, &missing):
		handlers.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		handlers.WriteError(w, http.StatusInternalServerError, "")
	}
}
