package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// errorKind is the error taxonomy every handler failure maps into. The kind
// decides the HTTP status; the message is the single human-readable string
// surfaced to the client.
type errorKind int

const (
	kindInputInvalid errorKind = iota
	kindNotFound
	kindSessionExpired
	kindVerificationFailed
	kindUnauthorized
	kindInternal
)

func (k errorKind) status() int {
	switch k {
	case kindInputInvalid, kindSessionExpired, kindVerificationFailed:
		return http.StatusBadRequest
	case kindNotFound:
		return http.StatusNotFound
	case kindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

type apiError struct {
	kind    errorKind
	message string
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error {
	return e.err
}

// fail builds a client-facing error with no underlying cause.
func fail(kind errorKind, message string) error {
	return &apiError{kind: kind, message: message}
}

// failWith keeps the underlying cause for server-side logs while the client
// only ever sees the message.
func failWith(kind errorKind, message string, err error) error {
	return &apiError{kind: kind, message: message, err: err}
}

// writeError converts any error into its JSON error response. Unclassified
// errors are treated as internal: logged with their cause, answered with a
// generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := &apiError{kind: kindInternal, message: "Internal server error", err: err}
	errors.As(err, &ae)

	if ae.kind == kindInternal || ae.kind == kindVerificationFailed {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	message := ae.message
	if ae.kind == kindInternal {
		message = "Internal server error"
	}
	writeJSON(w, ae.kind.status(), map[string]string{"error": message})
}
