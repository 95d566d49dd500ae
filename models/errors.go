package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeSearchFailed     = "SEARCH_FAILED"
	ErrCodeTimeout          = "SEARCH_TIMEOUT"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeInjection        = "INJECTION_FAILED"
	ErrCodeExtraction       = "EXTRACTION_FAILED"
	ErrCodeObservation      = "OBSERVATION_FAILED"
	ErrCodeActionFailed     = "ACTION_FAILED"
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeLLMFailure       = "LLM_FAILURE"
	ErrCodeLLMAuthFailure   = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited   = "LLM_RATE_LIMITED"
	ErrCodeLLMNotConfigured = "LLM_NOT_CONFIGURED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type SearchError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError creates a new SearchError.
func NewSearchError(code, message string, err error) *SearchError {
	return &SearchError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *SearchError) ToDetail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		msg = e.Error()
	}
	return &ErrorDetail{Code: e.Code, Message: msg}
}
