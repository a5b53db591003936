// Package errclass defines the stable, machine-readable error classes
// that cross drover's subsystem boundaries. Expected lock contention is
// not an error class: it is a typed outcome value.
package errclass

import "fmt"

// DroverError is a stable, machine-readable error class.
type DroverError struct {
	Code    string
	Message string
}

func (e *DroverError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DroverError) Is(target error) bool {
	t, ok := target.(*DroverError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new DroverError with the same Code but a specific message.
func (e *DroverError) WithMessage(msg string) *DroverError {
	return &DroverError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new DroverError with a formatted message.
func (e *DroverError) WithMessagef(format string, args ...any) *DroverError {
	return &DroverError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes.
var (
	ErrNameInvalid   = &DroverError{Code: "E_NAME_INVALID"}
	ErrConfigInvalid = &DroverError{Code: "E_CONFIG_INVALID"}
	ErrConfigVersion = &DroverError{Code: "E_CONFIG_VERSION"}
)
