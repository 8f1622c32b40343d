package models

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the failure class of a generation attempt. Providers
// classify their own API errors into one of these codes so the pipeline can
// branch on structured values instead of matching message substrings.
type ErrorCode string

const (
	CodeInvalidAPIKey           ErrorCode = "INVALID_API_KEY"
	CodeQuotaExceeded           ErrorCode = "API_QUOTA_EXCEEDED"
	CodeAPIServerError          ErrorCode = "API_SERVER_ERROR"
	CodeContentGenerationFailed ErrorCode = "CONTENT_GENERATION_FAILED"
	CodeSaveFailed              ErrorCode = "SAVE_FAILED"
	CodeTimeout                 ErrorCode = "TIMEOUT"
	CodeValidation              ErrorCode = "VALIDATION_ERROR"
	CodeUnexpected              ErrorCode = "UNEXPECTED"
)

// Operator-facing messages, surfaced verbatim through the status API.
var errorMessages = map[ErrorCode]string{
	CodeInvalidAPIKey:           "The generation API key is invalid. Contact the system administrator.",
	CodeQuotaExceeded:           "The generation API quota has been exhausted. Try again later.",
	CodeAPIServerError:          "The generation API returned a server error. Try again shortly.",
	CodeContentGenerationFailed: "Article generation failed. Please retry.",
	CodeSaveFailed:              "The generated article could not be saved.",
	CodeTimeout:                 "Article generation timed out.",
	CodeValidation:              "The generation request is invalid.",
	CodeUnexpected:              "An unexpected error occurred.",
}

// GenerationError is the single error type crossing the pipeline boundary.
type GenerationError struct {
	Code    ErrorCode
	Message string
	Err     error // original cause, kept for diagnostics
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt at the failed step may succeed.
// Quota and credential failures never are; retrying a quota exhaustion
// within the same window is pointless.
func (e *GenerationError) Retryable() bool {
	return e.Code == CodeAPIServerError || e.Code == CodeContentGenerationFailed
}

// NewGenerationError builds an error for the given code with the standard
// operator message, wrapping cause when present.
func NewGenerationError(code ErrorCode, cause error) *GenerationError {
	msg, ok := errorMessages[code]
	if !ok {
		msg = errorMessages[CodeUnexpected]
	}
	return &GenerationError{Code: code, Message: msg, Err: cause}
}

// AsGenerationError coerces any error into a *GenerationError. Errors that
// are not already classified become CodeUnexpected with the original error
// preserved.
func AsGenerationError(err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	return NewGenerationError(CodeUnexpected, err)
}
