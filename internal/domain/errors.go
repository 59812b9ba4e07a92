package domain

import "errors"

// Error kinds surfaced to clients
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authentication error")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Error carries a user-facing message together with its kind
type Error struct {
	Kind    error  // One of the Err* sentinels
	Message string // Message shown to the user
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation returns an ErrValidation with msg
func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

// Auth returns an ErrAuth with msg
func Auth(msg string) error { return &Error{Kind: ErrAuth, Message: msg} }

// Permission returns an ErrPermission with msg
func Permission(msg string) error { return &Error{Kind: ErrPermission, Message: msg} }

// Conflict returns an ErrConflict with msg
func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// NotFound returns an ErrNotFound with msg
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// ErrorMessage extracts the user-facing text of err, or "" when err is not a domain error
func ErrorMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
