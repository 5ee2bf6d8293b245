package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"
	ErrStorage      ErrorCode = "STORAGE_ERROR"

	// Pipeline errors
	ErrInvalidSource        ErrorCode = "INVALID_SOURCE"
	ErrSourceUnavailable    ErrorCode = "SOURCE_UNAVAILABLE"
	ErrNetwork              ErrorCode = "NETWORK_ERROR"
	ErrMediaFormat          ErrorCode = "MEDIA_FORMAT"
	ErrTranscriptionFailed  ErrorCode = "TRANSCRIPTION_FAILED"
	ErrQuizGenerationFailed ErrorCode = "QUIZ_GENERATION_FAILED"
	ErrQuotaExceeded        ErrorCode = "QUOTA_EXCEEDED"
	ErrStageTimeout         ErrorCode = "STAGE_TIMEOUT"

	// Session errors
	ErrInvalidState ErrorCode = "INVALID_STATE"
)

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageSynthesize Stage = "synthesize"
	StagePersist    Stage = "persist"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Err       error                  `json:"-"`
	Stage     Stage                  `json:"stage,omitempty"`
	Retryable bool                   `json:"retryable"`
	Context   map[string]interface{} `json:"details,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Details: e.Details(),
	})
}

// Details merges the error context with the pipeline stage and retry hint.
func (e *DomainError) Details() map[string]interface{} {
	if len(e.Context) == 0 && e.Stage == "" {
		return nil
	}
	details := make(map[string]interface{}, len(e.Context)+2)
	for k, v := range e.Context {
		details[k] = v
	}
	if e.Stage != "" {
		details["stage"] = string(e.Stage)
		details["retryable"] = e.Retryable
	}
	return details
}

// WithContext attaches a detail value and returns the same error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithStage tags the error with the pipeline stage it came from.
func (e *DomainError) WithStage(stage Stage) *DomainError {
	e.Stage = stage
	return e
}

// New creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AsDomainError unwraps err into a *DomainError when it carries one.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code ErrorCode) bool {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Code == code
	}
	return false
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(ErrUnauthorized, message, nil)
}

func NewForbiddenError(message string) *DomainError {
	return NewError(ErrForbidden, message, nil)
}

func NewStorageError(message string, err error) *DomainError {
	return NewError(ErrStorage, message, err)
}

func NewInvalidStateError(message string) *DomainError {
	return NewError(ErrInvalidState, message, nil)
}

func NewInvalidSourceError(message string) *DomainError {
	return NewError(ErrInvalidSource, message, nil).WithStage(StageDownload)
}

func NewSourceUnavailableError(message string, err error) *DomainError {
	return NewError(ErrSourceUnavailable, message, err).WithStage(StageDownload)
}

func NewMediaFormatError(message string, err error) *DomainError {
	return NewError(ErrMediaFormat, message, err).WithStage(StageDownload)
}

// NewNetworkError builds a retryable transport failure for the given stage.
func NewNetworkError(stage Stage, err error) *DomainError {
	e := NewError(ErrNetwork, "network failure", err).WithStage(stage)
	e.Retryable = true
	return e
}

func NewTranscriptionError(message string, err error) *DomainError {
	return NewError(ErrTranscriptionFailed, message, err).WithStage(StageTranscribe)
}

func NewQuizGenerationError(message string, err error) *DomainError {
	return NewError(ErrQuizGenerationFailed, message, err).WithStage(StageSynthesize)
}

// NewQuotaExceededError is retryable: the same request may succeed once the quota resets.
func NewQuotaExceededError(stage Stage, err error) *DomainError {
	e := NewError(ErrQuotaExceeded, "upstream quota exceeded", err).WithStage(stage)
	e.Retryable = true
	return e
}

func NewStageTimeoutError(stage Stage, err error) *DomainError {
	e := NewError(ErrStageTimeout, fmt.Sprintf("%s stage timed out", stage), err).WithStage(stage)
	e.Retryable = true
	return e
}

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors is returned when request validation fails on one or more fields.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", v[0].Message)
}
