package reasoning

import "fmt"

// ErrorCode identifies a reasoning-service failure class.
type ErrorCode string

const (
	ErrUnavailable     ErrorCode = "GEMINI_UNAVAILABLE"
	ErrEmptyResponse   ErrorCode = "EMPTY_RESPONSE"
	ErrInvalidResponse ErrorCode = "INVALID_RESPONSE"
)

// Error is a structured reasoning-service error. The triggering operation
// fails as a unit; callers surface it and let the user resubmit, there is no
// automatic retry.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
