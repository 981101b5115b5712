package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/eduqa/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantCode   string
	}{
		{"validation", apperror.ValidationFailed("email", "Invalid email format"), http.StatusBadRequest, "validation_error", "validation_failed"},
		{"conflict is a client error", apperror.New(apperror.ErrConflict, "duplicate_email", "User already exists"), http.StatusBadRequest, "conflict", "duplicate_email"},
		{"unauthorized", apperror.Unauthorized("Invalid credentials"), http.StatusUnauthorized, "unauthorized", "unauthorized"},
		{"forbidden", apperror.Forbidden("nope"), http.StatusForbidden, "forbidden", "forbidden"},
		{"not found", apperror.NotFound("user", "x"), http.StatusNotFound, "not_found", "not_found"},
		{"dependency", apperror.Dependency("identity provider", errors.New("dial tcp: timeout")), http.StatusInternalServerError, "internal_error", "dependency_failure"},
		{"wrapped", fmt.Errorf("service: %w", apperror.NotFound("question", "q1")), http.StatusNotFound, "not_found", "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, logger, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestWriteError_FieldAndCauseHandling(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rr := httptest.NewRecorder()
	writeError(rr, logger, apperror.ValidationFailed("tags", "You can only provide up to 3 tags"))
	assert.Contains(t, rr.Body.String(), `"field":"tags"`)

	// The cause of a dependency failure stays in the logs.
	rr = httptest.NewRecorder()
	writeError(rr, logger, apperror.Dependency("store", errors.New("pq: password authentication failed")))
	assert.NotContains(t, rr.Body.String(), "password authentication")
}

func TestWriteError_UnknownErrorIsGeneric(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	rr := httptest.NewRecorder()
	writeError(rr, logger, errors.New("SELECT * FROM users: disk I/O error"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "SELECT")
	assert.Contains(t, rr.Body.String(), "An internal error occurred")
	assert.Contains(t, logs.String(), "disk I/O error")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst struct {
				Name string `json:"name"`
			}
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/questions?limit=5&offset=-1&page=x", nil)

	n, err := queryInt(req, "limit")
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = queryInt(req, "offset")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	n, err = queryInt(req, "missing")
	assert.NoError(t, err)
	assert.Zero(t, n)
}
