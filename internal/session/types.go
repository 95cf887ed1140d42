package session

import "fmt"

const (
	CodeValidation     = "VALIDATION"
	CodeConfiguration  = "CONFIGURATION"
	CodeInitialization = "INITIALIZATION"
	CodeNavigation     = "NAVIGATION"
	CodeRenderTimeout  = "RENDER_TIMEOUT"
)

// CodedError is a typed error used for stable facade mapping. The code is
// what the one-retry-then-surface policy keys on, so facades must never
// collapse categories.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}
