package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"quardsview/internal/backend"
	"quardsview/internal/logging"
	"quardsview/internal/viewer"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorReply is the {"ok": false} body for err, tagged with its error kind.
func errorReply(err error) map[string]any {
	reply := map[string]any{"ok": false, "error": err.Error()}
	var be *backend.Error
	if errors.As(err, &be) {
		reply["errorKind"] = be.Kind.String()
	}
	return reply
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case backend.IsKind(err, backend.KindValidation):
		return http.StatusBadRequest
	case errors.Is(err, viewer.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LogRequests logs each request at debug level.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debugf("%s %s %s (%s)", ClientIP(r), r.Method, r.URL.Path, time.Since(start))
	})
}
