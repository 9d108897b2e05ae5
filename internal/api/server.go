package api

import (
	"encoding/json"
	"net/http"

	"github.com/taskpass/server/internal/auth"
	"github.com/taskpass/server/internal/storage"
	"github.com/taskpass/server/internal/ui"
)

// Server wires the HTTP surface: ceremony endpoints, the task data API,
// pages, and the request gate in front of all of it.
type Server struct {
	store      *storage.Store
	sessions   *auth.Sessions
	ceremonies *auth.Ceremonies
	pages      *ui.Pages
	secure     bool
}

func NewServer(store *storage.Store, sessions *auth.Sessions, ceremonies *auth.Ceremonies, pages *ui.Pages, secure bool) *Server {
	return &Server{
		store:      store,
		sessions:   sessions,
		ceremonies: ceremonies,
		pages:      pages,
		secure:     secure,
	}
}

// Routes builds the full handler tree with the session gate applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Ceremony endpoints (public, gated out by the allow-list)
	mux.HandleFunc("POST /api/auth/register-options", s.handleRegisterOptions)
	mux.HandleFunc("POST /api/auth/register-verify", s.handleRegisterVerify)
	mux.HandleFunc("POST /api/auth/login-options", s.handleLoginOptions)
	mux.HandleFunc("POST /api/auth/login-verify", s.handleLoginVerify)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/add-passkey-options", s.handleAddPasskeyOptions)
	mux.HandleFunc("POST /api/auth/add-passkey-verify", s.handleAddPasskeyVerify)

	// Task data API (requires a session)
	mux.HandleFunc("GET /api/todos", s.handleListTodos)
	mux.HandleFunc("POST /api/todos", s.handleCreateTodo)
	mux.HandleFunc("GET /api/todos/{id}", s.handleGetTodo)
	mux.HandleFunc("PUT /api/todos/{id}", s.handleUpdateTodo)
	mux.HandleFunc("DELETE /api/todos/{id}", s.handleDeleteTodo)
	mux.HandleFunc("GET /api/todos/{id}/subtasks", s.handleListSubtasks)
	mux.HandleFunc("POST /api/todos/{id}/subtasks", s.handleCreateSubtask)
	mux.HandleFunc("PUT /api/subtasks/{id}", s.handleUpdateSubtask)
	mux.HandleFunc("DELETE /api/subtasks/{id}", s.handleDeleteSubtask)
	mux.HandleFunc("PUT /api/todos/{id}/tags", s.handleAssignTags)
	mux.HandleFunc("GET /api/tags", s.handleListTags)
	mux.HandleFunc("POST /api/tags", s.handleCreateTag)
	mux.HandleFunc("PUT /api/tags/{id}", s.handleUpdateTag)
	mux.HandleFunc("DELETE /api/tags/{id}", s.handleDeleteTag)
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /api/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("POST /api/templates/{id}/use", s.handleUseTemplate)
	mux.HandleFunc("GET /api/reminders/check", s.handleCheckReminders)
	mux.HandleFunc("POST /api/reminders/ack", s.handleAckReminder)
	mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	mux.HandleFunc("GET /api/export/json", s.handleExportJSON)
	mux.HandleFunc("GET /api/export/csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/import/json", s.handleImportJSON)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Pages
	mux.HandleFunc("GET /login", s.page("login"))
	mux.HandleFunc("GET /calendar", s.page("calendar"))
	mux.HandleFunc("GET /{$}", s.page("index"))

	return s.Gate(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.pages.Render(w, name, nil); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses a request body into dst, mapping malformed bodies to
// the InputInvalid kind.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return failWith(kindInputInvalid, "Invalid request body", err)
	}
	return nil
}
