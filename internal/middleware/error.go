package middleware

import (
	"errors"
	"net/http"

	"quiztube/internal/domain"
	"quiztube/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorResponse is the JSON body of every failed request. Pipeline failures
// carry "stage" and "retryable" in Details.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse lists every rejected field of a request body.
type ValidationErrorResponse struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Status  int                      `json:"status"`
	Errors  []domain.ValidationError `json:"errors"`
}

// ErrorHandler renders errors returned by handlers. Install it through
// fiber.Config so errors from every route and middleware reach it.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body, fields := classify(err)

		level := zapcore.WarnLevel
		if status >= http.StatusInternalServerError {
			level = zapcore.ErrorLevel
		}
		fields = append(fields,
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
		)
		if ce := logger.Get().Check(level, "Request failed"); ce != nil {
			ce.Write(fields...)
		}

		return c.Status(status).JSON(body)
	}
}

func classify(err error) (int, interface{}, []zap.Field) {
	var invalid domain.ValidationErrors
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, ValidationErrorResponse{
			Code:    string(domain.ErrValidation),
			Message: "Request validation failed",
			Status:  http.StatusBadRequest,
			Errors:  invalid,
		}, []zap.Field{zap.Int("invalid_fields", len(invalid))}
	}

	if de, ok := domain.AsDomainError(err); ok {
		status := StatusForCode(de.Code)
		body := ErrorResponse{
			Code:    string(de.Code),
			Message: de.Message,
			Status:  status,
			Details: de.Details(),
		}
		return status, body, []zap.Field{
			zap.String("code", string(de.Code)),
			zap.String("stage", string(de.Stage)),
			zap.Error(de.Err),
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, ErrorResponse{
			Code:    "HTTP_ERROR",
			Message: fe.Message,
			Status:  fe.Code,
		}, nil
	}

	// Anything else is a bug; its text stays in the log.
	return http.StatusInternalServerError, ErrorResponse{
		Code:    string(domain.ErrInternal),
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
	}, []zap.Field{zap.Error(err)}
}

// StatusForCode maps domain error codes to HTTP status codes.
func StatusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrInvalidSource, domain.ErrInvalidInput, domain.ErrValidation, domain.ErrMediaFormat:
		return http.StatusBadRequest
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrInvalidState:
		return http.StatusConflict
	case domain.ErrSourceUnavailable, domain.ErrTranscriptionFailed, domain.ErrQuizGenerationFailed:
		return http.StatusUnprocessableEntity
	case domain.ErrQuotaExceeded:
		return http.StatusTooManyRequests
	case domain.ErrNetwork:
		return http.StatusBadGateway
	case domain.ErrStageTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
