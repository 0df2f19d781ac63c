package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// userID returns the caller identity. Authentication is delegated to the
// proxy in front of this service; the header is trusted as-is.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// parsePeriod reads {year} and {month} path segments. Non-numeric values
// surface as an invalid period, same as out-of-range ones.
func parsePeriod(r *http.Request) (core.Period, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: year %q", core.ErrInvalidPeriod, r.PathValue("year"))
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: month %q", core.ErrInvalidPeriod, r.PathValue("month"))
	}

	p := core.NewPeriod(year, month)
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidPeriod), errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
