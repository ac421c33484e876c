package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Error types carried in the "error" field of failed responses.
const (
	errBadRequest       = "bad_request"
	errNotFound         = "not_found"
	errMethodNotAllowed = "method_not_allowed"
	errForbidden        = "forbidden"
	errDatabase         = "db_transaction_error"
	errUpstream         = "upstream_error"
	errTooManyRequests  = "too_many_requests"
	errInternal         = "internal_server_error"
)

var videoUUIDPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// validUUID reports whether s is 32 hex digits, in either case.
func validUUID(s string) bool {
	return videoUUIDPattern.MatchString(strings.ToLower(s))
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeResult writes {"result": v} with status 200.
func writeResult(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, map[string]any{"result": v})
}

// writeError writes {"error": kind, "message": msg} with status.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err), slog.String("component", "http"))
	}
}

// requireGET writes a 405 and returns false for any method other than GET.
func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed, "method not allowed")
	return false
}

// parseFloat64Query extracts a float64 parameter from query string with a default value.
func parseFloat64Query(r *http.Request, key string, def float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
