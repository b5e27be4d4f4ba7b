package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/messaging"
	"Tutorhub/internal/core/tutors"
	"Tutorhub/internal/core/users"
)

// TutorHandler handles tutor discovery and profile endpoints
type TutorHandler struct {
	tutorService     tutors.TutorService
	messagingService messaging.Service
}

func NewTutorHandler(tutorService tutors.TutorService, messagingService messaging.Service) *TutorHandler {
	return &TutorHandler{tutorService: tutorService, messagingService: messagingService}
}

// TutorRoutes returns the /tutor route group.
func TutorRoutes(tutorService tutors.TutorService, messagingService messaging.Service, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewTutorHandler(tutorService, messagingService)
	r := chi.NewRouter()

	anyUser := authMW.Protected(nil)
	tutorOnly := authMW.Protected(nil, users.RoleTutor)

	r.With(anyUser).Get("/", h.ListApproved)
	r.With(anyUser).Get("/profile", h.GetProfile)
	r.With(anyUser).Get("/{tutorID}/profile", h.GetProfile)
	r.With(tutorOnly).Post("/profile", h.UpdateProfile)

	r.With(tutorOnly).Get("/students", h.ListStudentThreads)
	r.With(tutorOnly).Get("/requests", h.ListStudentRequests)

	return r
}

// ListApproved handles GET /tutor: the searchable tutor directory.
// Only approved profiles are listed, as public views.
func (h *TutorHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	list, err := h.tutorService.ListApproved(r.Context())
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}

	views := make([]tutors.TutorView, 0, len(list))
	for _, t := range list {
		views = append(views, t.PublicView())
	}
	handlers.WriteJSON(w, http.StatusOK, views)
}

// GetProfile handles GET /tutor/profile and /tutor/{id}/profile
func (h *TutorHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	tutorID := principal.User.ID
	if raw := chi.URLParam(r, "tutorID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "invalid tutor id")
			return
		}
		tutorID = id
	}

	tutor, err := h.tutorService.GetTutor(r.Context(), tutorID)
	if err != nil {
		handlers.WriteError(w, http.StatusNotFound, "Tutor not found!")
		return
	}

	// The tutor sees their own review state; everyone else gets the
	// public projection.
	if tutorID == principal.User.ID || principal.User.Role == users.RoleAdmin {
		handlers.WriteJSON(w, http.StatusOK, tutor.PrivateView())
		return
	}
	handlers.WriteJSON(w, http.StatusOK, tutor.PublicView())
}

// UpdateProfile handles POST /tutor/profile
func (h *TutorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	var body struct {
		Bio      *string  `json:"bio"`
		Price    *float64 `json:"price"`
		Subjects []struct {
			ID string `json:"id"`
		} `json:"subjects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}

	req := tutors.UpdateProfileRequest{Bio: body.Bio, Price: body.Price}
	if body.Subjects != nil {
		req.SubjectIDs = make([]uuid.UUID, 0, len(body.Subjects))
		for _, s := range body.Subjects {
			if id, err := uuid.Parse(s.ID); err == nil {
				req.SubjectIDs = append(req.SubjectIDs, id)
			}
		}
	}

	updated, err := h.tutorService.UpdateProfile(r.Context(), principal.User.ID, req)
	if err != nil {
		if errors.Is(err, tutors.ErrProfileNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "Tutor not found!")
			return
		}
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, updated.PrivateView())
}

// ListStudentThreads handles GET /tutor/students
func (h *TutorHandler) ListStudentThreads(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threads, err := h.messagingService.ListThreads(r.Context(), principal.User.ID)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, threads)
}

// ListStudentRequests handles GET /tutor/requests
func (h *TutorHandler) ListStudentRequests(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threads, err := h.messagingService.ListRequests(r.Context(), principal.User.ID)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, threads)
}
