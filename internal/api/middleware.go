package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taskpass/server/internal/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Session returns the verified claims the gate attached to the request
// context.
func Session(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(sessionContextKey).(*auth.Claims)
	return claims, ok
}

// Paths reachable without a session: pages and endpoints a client needs to
// get INTO a session, plus static assets and health.
var publicPrefixes = []string{
	"/api/auth/",
	"/static/",
	"/favicon",
	"/healthz",
}

const loginPath = "/login"

func isPublicPath(path string) bool {
	if path == loginPath {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Gate is the per-request authentication decision. It is stateless: a
// request is authenticated if and only if it carries a session cookie whose
// self-contained token verifies. Data API paths get a 401 without a
// session; page paths are redirected to the login page; an authenticated
// request for the login page is sent home instead.
func (s *Server) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.sessions.FromRequest(r)

		if err != nil {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}

		if r.URL.Path == loginPath {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, claims)))
	})
}

// session fetches the gate-attached claims; every handler behind the gate
// must have them, so absence is an Unauthorized failure, not a panic.
func (s *Server) session(r *http.Request) (*auth.Claims, error) {
	claims, ok := Session(r.Context())
	if !ok {
		return nil, fail(kindUnauthorized, "Unauthorized")
	}
	return claims, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs one line per request with method, path, status and latency.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// CORS reflects the request origin for browser clients that run the
// ceremony from another page. Credentials are allowed since everything here
// is cookie-based.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
