package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiztube/internal/domain"
	"quiztube/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorApp(err error) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Get("/", func(c *fiber.Ctx) error { return err })
	return app
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.NewNotFoundError("quiz not found"), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", domain.NewForbiddenError("not the owner"), http.StatusForbidden, "FORBIDDEN"},
		{"invalid state", domain.NewInvalidStateError("already completed"), http.StatusConflict, "INVALID_STATE"},
		{"media format", domain.NewMediaFormatError("no audio stream", nil), http.StatusBadRequest, "MEDIA_FORMAT"},
		{"transcription", domain.NewTranscriptionError("silence", nil), http.StatusUnprocessableEntity, "TRANSCRIPTION_FAILED"},
		{"network", domain.NewNetworkError(domain.StageDownload, errors.New("reset")), http.StatusBadGateway, "NETWORK_ERROR"},
		{"storage", domain.NewStorageError("insert failed", errors.New("db down")), http.StatusInternalServerError, "STORAGE_ERROR"},
		{"wrapped", fmtWrap(domain.NewQuotaExceededError(domain.StageTranscribe, nil)), http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := errorApp(tt.err).Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body middleware.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestErrorHandler_HidesUnknownErrors(t *testing.T) {
	resp, err := errorApp(errors.New("dial tcp 10.0.0.5:1521: connection refused")).Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Message)
}

func TestErrorHandler_ValidationErrors(t *testing.T) {
	verr := domain.ValidationErrors{{Field: "url", Tag: "required", Message: "url is required"}}
	resp, err := errorApp(verr).Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body middleware.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "url", body.Errors[0].Field)
}

func TestErrorHandler_FiberErrors(t *testing.T) {
	resp, err := errorApp(fiber.NewError(fiber.StatusBadRequest, "Invalid request body")).Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func fmtWrap(err error) error {
	return &wrapped{err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "service: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
