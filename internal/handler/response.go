package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the wire shape is
// the same across the API. Errors always look like:
//
//	{"error": "validation_error", "code": "password_mismatch", "message": "Passwords do not match"}
//
// "field" is added when a specific request field was at fault.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/eduqa/internal/apperror"
	"github.com/sakif/eduqa/internal/auth"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`           // error kind, e.g. "not_found"
	Code    string `json:"code,omitempty"`  // stable code, e.g. "duplicate_email"
	Message string `json:"message"`         // human-readable, safe to show
	Field   string `json:"field,omitempty"` // offending request field, if any
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

var errUnauthenticated = apperror.Unauthorized("valid authentication required")

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps err to a status and writes the standard error body.
//
// Duplicates (ErrConflict) are 400 in this API, not 409: clients treat them
// like any other rejected input. Errors that are not *apperror.AppError are
// logged and answered with a generic 500 so SQL, paths and provider
// responses never reach the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("dependency failure",
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Code:    appErr.Code,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "conflict"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a single JSON value from the request body into dst.
// Malformed or oversized bodies come back as a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "Request body is required")
		case errors.As(err, &tooLarge):
			return apperror.ValidationFailed("", "Request body is too large")
		default:
			return apperror.ValidationFailed("", "Invalid JSON body")
		}
	}
	return nil
}

// requireClaims returns the caller set by auth.RequireAuth. On routes
// without that middleware it answers 401 itself.
func requireClaims(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, logger, errUnauthenticated)
		return nil, false
	}
	return claims, true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
