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
	"Tutorhub/internal/core/subjects"
	"Tutorhub/internal/core/users"
)

// StudentHandler handles student profile and thread-listing endpoints
type StudentHandler struct {
	userService      users.UserService
	subjectService   subjects.SubjectService
	messagingService messaging.Service
}

func NewStudentHandler(userService users.UserService, subjectService subjects.SubjectService, messagingService messaging.Service) *StudentHandler {
	return &StudentHandler{
		userService:      userService,
		subjectService:   subjectService,
		messagingService: messagingService,
	}
}

// StudentRoutes returns the /student route group.
func StudentRoutes(userService users.UserService, subjectService subjects.SubjectService, messagingService messaging.Service, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewStudentHandler(userService, subjectService, messagingService)
	r := chi.NewRouter()

	anyUser := authMW.Protected(nil)
	studentOnly := authMW.Protected(nil, users.RoleStudent)

	r.With(anyUser).Get("/profile", h.GetProfile)
	r.With(anyUser).Get("/{studentID}/profile", h.GetProfile)
	r.With(studentOnly).Post("/profile", h.UpdateProfile)
	r.With(studentOnly).Delete("/profile", h.DeleteAccount)

	r.With(anyUser).Get("/profile/subject", h.ListSubjects)
	r.With(anyUser).Get("/{studentID}/profile/subject", h.ListSubjects)
	r.With(studentOnly).Post("/profile/subject", h.AttachSubjects)
	r.With(studentOnly).Delete("/profile/subject", h.DetachSubjects)

	r.With(studentOnly).Get("/tutors", h.ListTutorThreads)
	r.With(studentOnly).Get("/requests", h.ListTutorRequests)

	return r
}

// GetProfile handles GET /student/profile and /student/{id}/profile
func (h *StudentHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	studentID := principal.User.ID
	if raw := chi.URLParam(r, "studentID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "invalid student id")
			return
		}
		studentID = id
	}

	student, err := h.userService.GetByID(r.Context(), studentID)
	if err != nil || student.Role != users.RoleStudent {
		handlers.WriteError(w, http.StatusNotFound, "Student not found!")
		return
	}

	subj, err := h.subjectService.ListForStudent(r.Context(), studentID)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}

	profile := users.ProfileView(student, student.ID == principal.User.ID)
	handlers.WriteJSON(w, http.StatusOK, struct {
		users.Profile
		Subjects []subjects.Subject `json:"subjects"`
	}{Profile: profile, Subjects: subj})
}

// UpdateProfile handles POST /student/profile
func (h *StudentHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	var req users.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), principal.User.ID, req)
	if err != nil {
		writeUserError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, users.ProfileView(updated, true))
}

// DeleteAccount handles DELETE /student/profile; the password is
// re-verified before the account goes away.
func (h *StudentHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), principal.User.ID, req.Password); err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			handlers.WriteError(w, http.StatusUnauthorized, "Invalid password")
			return
		}
		writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubjects handles GET /student/profile/subject
func (h *StudentHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	studentID := principal.User.ID
	if raw := chi.URLParam(r, "studentID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "invalid student id")
			return
		}
		studentID = id
	}

	student, err := h.userService.GetByID(r.Context(), studentID)
	if err != nil || student.Role != users.RoleStudent {
		handlers.WriteError(w, http.StatusNotFound, "Student with that ID not found")
		return
	}

	subj, err := h.subjectService.ListForStudent(r.Context(), studentID)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, subj)
}

// AttachSubjects handles POST /student/profile/subject with a JSON list
// of subject ids.
func (h *StudentHandler) AttachSubjects(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	ids, ok := decodeSubjectIDs(w, r)
	if !ok {
		return
	}

	subj, err := h.subjectService.AttachToStudent(r.Context(), principal.User.ID, ids)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, subj)
}

// DetachSubjects handles DELETE /student/profile/subject
func (h *StudentHandler) DetachSubjects(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	ids, ok := decodeSubjectIDs(w, r)
	if !ok {
		return
	}

	subj, err := h.subjectService.DetachFromStudent(r.Context(), principal.User.ID, ids)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, subj)
}

// ListTutorThreads handles GET /student/tutors
func (h *StudentHandler) ListTutorThreads(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threads, err := h.messagingService.ListThreads(r.Context(), principal.User.ID)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, threads)
}

// ListTutorRequests handles GET /student/requests
func (h *StudentHandler) ListTutorRequests(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threads, err := h.messagingService.ListRequests(r.Context(), principal.User.ID)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, threads)
}

// decodeSubjectIDs parses a body of either [{"id": "..."}] or ["..."].
// Unparseable entries are skipped, matching the lenient attach semantics.
func decodeSubjectIDs(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "Invalid body")
		return nil, false
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, entry := range raw {
		var obj struct {
			ID string `json:"id"`
		}
		var s string
		if err := json.Unmarshal(entry, &obj); err == nil && obj.ID != "" {
			s = obj.ID
		} else if err := json.Unmarshal(entry, &s); err != nil {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, true
}
