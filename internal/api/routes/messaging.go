package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/core/messaging"
)

// MessagingHandler handles the REST surface of the message router
type MessagingHandler struct {
	messagingService messaging.Service
}

func NewMessagingHandler(messagingService messaging.Service) *MessagingHandler {
	return &MessagingHandler{messagingService: messagingService}
}

// MessagingRoutes returns the /message route group. The websocket path
// shares the same Service; HTTP is the fallback transport.
func MessagingRoutes(messagingService messaging.Service, authMW *middleware.AuthMiddleware) chi.Router {
	h := NewMessagingHandler(messagingService)
	r := chi.NewRouter()

	r.Use(authMW.Protected(nil))
	r.Post("/{recipientID}", h.Send)
	r.Get("/thread/{threadID}", h.GetThread)
	r.Post("/thread/{threadID}/approve", h.Approve)
	r.Post("/thread/{threadID}/block", h.Block)

	return r
}

// Send handles POST /message/{recipientID}
func (h *MessagingHandler) Send(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	recipientID, err := uuid.Parse(chi.URLParam(r, "recipientID"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid recipient id")
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "could not parse JSON data")
		return
	}

	// HTTP sends have no originating connection; every device gets the ack.
	message, err := h.messagingService.SendMessage(r.Context(), principal.User.ID, recipientID, body.Message, uuid.Nil)
	if err != nil {
		writeMessagingError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusCreated, messaging.NewMessageView(message))
}

// GetThread handles GET /message/thread/{threadID}?page=N&page_size=M
func (h *MessagingHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	view, err := h.messagingService.GetThread(r.Context(), principal.User.ID, threadID, pageSize, page)
	if err != nil {
		writeMessagingError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, view)
}

// Approve handles POST /message/thread/{threadID}/approve (tutor only,
// enforced per-thread: the caller must be the thread's tutor).
func (h *MessagingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	thread, err := h.messagingService.ApproveThread(r.Context(), principal.User.ID, threadID)
	if err != nil {
		writeMessagingError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"id": thread.ID, "state": thread.State})
}

// Block handles POST /message/thread/{threadID}/block
func (h *MessagingHandler) Block(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	thread, err := h.messagingService.BlockThread(r.Context(), principal.User.ID, threadID)
	if err != nil {
		writeMessagingError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"id": thread.ID, "state": thread.VisibleState(principal.User.ID)})
}

// writeMessagingError maps messaging domain errors onto HTTP statuses.
func writeMessagingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messaging.ErrThreadNotFound):
		handlers.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, messaging.ErrRoleConflict),
		errors.Is(err, messaging.ErrTutorInitiated),
		errors.Is(err, messaging.ErrAwaitingConsent):
		handlers.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, messaging.ErrNotTutor),
		errors.Is(err, messaging.ErrThreadBlocked):
		handlers.WriteError(w, http.StatusForbidden, err.Error())
	default:
		handlers.WriteError(w, http.StatusInternalServerError, "")
	}
}
