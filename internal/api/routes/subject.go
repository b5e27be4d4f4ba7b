package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/subjects"
	"Tutorhub/internal/core/users"
)

// SubjectHandler handles the subject catalog endpoints
type SubjectHandler struct {
	subjectService subjects.SubjectService
}

func NewSubjectHandler(subjectService subjects.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

// SubjectRoutes returns the catalog route group: listing is public,
// creation is admin-only.
func SubjectRoutes(subjectService subjects.SubjectService, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewSubjectHandler(subjectService)
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.With(authMW.Protected(nil, users.RoleAdmin)).Put("/", h.Create)

	return r
}

// List handles GET /subject
func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.subjectService.List(r.Context())
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, list)
}

// Create handles PUT /subject (admin only)
func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}

	subject, err := h.subjectService.Create(r.Context(), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, subjects.ErrSubjectExists):
			handlers.WriteError(w, http.StatusConflict, err.Error())
		case errors.Is(err, subjects.ErrEmptyName):
			handlers.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			handlers.WriteError(w, http.StatusInternalServerError, "")
		}
		return
	}

	handlers.WriteJSON(w, http.StatusOK, subject)
}
