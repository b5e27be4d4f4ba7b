package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/tutors"
	"Tutorhub/internal/core/users"
)

// AdminHandler handles the tutor approval workflow
type AdminHandler struct {
	tutorService tutors.TutorService
}

func NewAdminHandler(tutorService tutors.TutorService) *AdminHandler {
	return &AdminHandler{tutorService: tutorService}
}

// AdminRoutes returns the /admin route group; every endpoint requires
// the admin role.
func AdminRoutes(tutorService tutors.TutorService, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewAdminHandler(tutorService)
	r := chi.NewRouter()

	r.Use(authMW.Protected(nil, users.RoleAdmin))
	r.Get("/tutor", h.ListUnreviewed)
	r.Post("/tutor/{tutorID}", h.Review)

	return r
}

// ListUnreviewed handles GET /admin/tutor
func (h *AdminHandler) ListUnreviewed(w http.ResponseWriter, r *http.Request) {
	list, err := h.tutorService.ListUnreviewed(r.Context())
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}

	views := make([]tutors.TutorView, 0, len(list))
	for _, t := range list {
		views = append(views, t.PrivateView())
	}
	handlers.WriteJSON(w, http.StatusOK, views)
}

// Review handles POST /admin/tutor/{id}. A denial must carry a reason.
func (h *AdminHandler) Review(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	tutorID, err := uuid.Parse(chi.URLParam(r, "tutorID"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid tutor id")
		return
	}

	var body struct {
		Status bool   `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}
	if !body.Status && body.Reason == "" {
		handlers.WriteError(w, http.StatusBadRequest, "missing following required field(s): reason")
		return
	}

	tutor, err := h.tutorService.Review(r.Context(), tutorID, principal.User.ID, body.Status, body.Reason)
	if err != nil {
		if errors.Is(err, tutors.ErrProfileNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "Tutor not found!")
			return
		}
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, tutor.PrivateView())
}
