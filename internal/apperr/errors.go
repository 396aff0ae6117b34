package apperr

import "net/http"

type ErrorCode string

const (
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	CodeDependency ErrorCode = "DEPENDENCY_FAILURE"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

// NotFound covers references that no longer resolve: a pending order or
// payment confirmation that was already processed. Expected under
// double-submission, so callers should not treat it as severe.
func NotFound(message string) *Error {
	return newError(CodeNotFound, message, http.StatusNotFound, nil)
}

func Validation(message string, details map[string]any) *Error {
	return newError(CodeValidation, message, http.StatusBadRequest, details)
}

func Dependency(message string, cause error) *Error {
	details := map[string]any{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return newError(CodeDependency, message, http.StatusInternalServerError, details)
}
