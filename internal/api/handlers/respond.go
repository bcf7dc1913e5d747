package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imedwei/workspace-backups/internal/backup"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error reason to an HTTP status.
func statusFor(reason string) int {
	switch reason {
	case backup.ReasonNotFound:
		return http.StatusNotFound
	case backup.ReasonInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	reason := backup.ReasonFor(err)
	status := statusFor(reason)

	msg := err.Error()
	if reason == backup.ReasonNotFound {
		msg = "Backup not found"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"reason", reason,
			"error", err,
		)
	}

	writeJSON(w, status, ErrorResponse{Error: msg, Reason: reason})
}

// pathParam returns a decoded chi URL parameter.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// queryInt parses a non-negative integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, invalidQuery(name, raw)
	}
	return n, nil
}

func queryLabel(r *http.Request, def string) string {
	if label := r.URL.Query().Get("label"); label != "" {
		return label
	}
	return def
}
