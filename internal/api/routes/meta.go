package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"Tutorhub/internal/api/handlers"
	"Tutorhub/internal/core/users"
)

// RegisterMetaRoutes adds the enum lookup endpoints clients use to
// render registration forms.
func RegisterMetaRoutes(r chi.Router) {
	r.Get("/role", listRoles)
	r.Get("/gender", listGenders)
}

func listRoles(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, len(users.Roles()))
	for _, role := range users.Roles() {
		out[string(role)] = role.Name()
	}
	handlers.WriteJSON(w, http.StatusOK, out)
}

func listGenders(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, len(users.Genders()))
	for _, g := range users.Genders() {
		out[string(g)] = g.Name()
	}
	handlers.WriteJSON(w, http.StatusOK, out)
}
