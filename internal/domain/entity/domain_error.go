package entity

import "errors"

// Codes carried by DomainError.
const (
	// CodeInvalidStatusTransition is raised when a job is moved out of a
	// terminal state or skips processing.
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	// CodeInvalidContent is raised for a content item without id or tenant.
	CodeInvalidContent = "INVALID_CONTENT"
)

// DomainError is an entity invariant violation tagged with a code.
type DomainError struct {
	message string
	code    string
}

func NewDomainError(message, code string) *DomainError {
	return &DomainError{message: message, code: code}
}

func (e *DomainError) Error() string {
	return e.message
}

func (e *DomainError) Code() string {
	return e.code
}

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code string) bool {
	var de *DomainError
	return errors.As(err, &de) && de.code == code
}
