package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a cardbot error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrExtractionFailed ErrorCode = "EXTRACTION_FAILED" // 422
	ErrColumnNotFound   ErrorCode = "COLUMN_NOT_FOUND"  // 422
	ErrExternalAPI      ErrorCode = "EXTERNAL_API"      // 502
	ErrScrapeFailed     ErrorCode = "SCRAPE_FAILED"     // 502 (reported beside a created card, never returned)
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// Failure reasons reported in Message and Details["reason"].
const (
	ReasonUnparsable     = "unparsable response"
	ReasonServiceFailed  = "completion service unavailable"
	ReasonMissingFields  = "response missing required fields"
	ReasonColumnNotFound = "column not found"
	ReasonCardFailed     = "card creation failed"
	ReasonVocabulary     = "board vocabulary unavailable"
	ReasonNoImage        = "no image found"
	ReasonPageFetch      = "sharing page unreachable"
	ReasonUploadFailed   = "upload failed"
)

// CardbotError represents a structured error with code, status, and details.
type CardbotError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *CardbotError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CardbotError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CardbotError {
	return &CardbotError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown resource.
func NewNotFound(what string) *CardbotError {
	return &CardbotError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewExtractionFailed creates a 422 error when the language model output
// cannot be turned into ticket fields.
func NewExtractionFailed(reason string, cause error) *CardbotError {
	return &CardbotError{
		Code:    ErrExtractionFailed,
		Status:  422,
		Message: reason,
		Details: map[string]any{"reason": reason},
		cause:   cause,
	}
}

// NewColumnNotFound creates a 422 error when the destination column cannot be resolved.
func NewColumnNotFound(column string) *CardbotError {
	return &CardbotError{
		Code:    ErrColumnNotFound,
		Status:  422,
		Message: ReasonColumnNotFound,
		Details: map[string]any{"column": column},
	}
}

// NewExternalAPI creates a 502 error for a failed board API call.
func NewExternalAPI(reason string, cause error) *CardbotError {
	return &CardbotError{
		Code:    ErrExternalAPI,
		Status:  502,
		Message: reason,
		Details: map[string]any{"reason": reason},
		cause:   cause,
	}
}

// NewScrapeFailed creates an error describing why no screenshot could be harvested.
func NewScrapeFailed(reason string, cause error) *CardbotError {
	return &CardbotError{
		Code:    ErrScrapeFailed,
		Status:  502,
		Message: reason,
		Details: map[string]any{"reason": reason},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CardbotError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CardbotError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a CardbotError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CardbotError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As returns the CardbotError in err's chain, or nil.
func As(err error) *CardbotError {
	var cErr *CardbotError
	if stderrors.As(err, &cErr) {
		return cErr
	}
	return nil
}
