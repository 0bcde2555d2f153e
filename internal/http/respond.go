package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookngn/internal/auth"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
	"bookngn/internal/storage"
	"bookngn/internal/tax"
)

const maxBodyBytes = 1 << 20

var errBadYear = errors.New("year must be a four digit number")

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var ve *tax.ValidationError
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnknownCategory),
		errors.Is(err, services.ErrCategoryMismatch),
		errors.Is(err, tax.ErrUnknownCategory),
		errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateCategory):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs server-side failures and writes the mapped status. Client
// errors carry their message; internal ones stay generic.
func respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
		writeError(w, status, "internal error: "+op+" failed")
		return
	}

	body := errorBody{Error: err.Error()}
	var ve *tax.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", services.ErrValidation)
		}
		return fmt.Errorf("%w: invalid JSON: %v", services.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single object", services.ErrValidation)
	}
	return nil
}

// userID returns the authenticated user; the auth middleware guarantees it on /api.
func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// parseYear reads ?year=, defaulting to the current year.
func parseYear(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return time.Now().Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1000 || y > 9999 {
		return 0, fmt.Errorf("%w: %s", services.ErrValidation, errBadYear)
	}
	return y, nil
}

// parseIntParam reads a non-negative integer query parameter.
func parseIntParam(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", services.ErrValidation, name)
	}
	return n, nil
}
