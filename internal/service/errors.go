package service

import "errors"

// Error kinds. Controllers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation failed")
)

// serviceError carries a user facing message and unwraps to its kind.
type serviceError struct {
	kind    error
	message string
}

func (e *serviceError) Error() string { return e.message }
func (e *serviceError) Unwrap() error { return e.kind }

func newError(kind error, message string) error {
	return &serviceError{kind: kind, message: message}
}

var (
	errAttemptNotFound   = newError(ErrNotFound, "Attempt not found")
	errExamNotFound      = newError(ErrNotFound, "Exam not found")
	errUserNotFound      = newError(ErrNotFound, "User not found")
	errExamUnavailable   = newError(ErrUnavailable, "Exam not available")
	errAlreadySubmitted  = newError(ErrInvalidState, "Attempt already submitted")
	errNotInProgress     = newError(ErrInvalidState, "Attempt is not in progress")
	errStartRace         = newError(ErrConflict, "Attempt was updated concurrently, please try again")
	errAlreadyAttempted  = newError(ErrConflict, "You have already attempted this exam. Only one attempt is allowed.")
	errInvalidCredential = newError(ErrUnauthenticated, "Invalid email or password")
)

func forbidden(action string) error {
	return newError(ErrForbidden, "Not authorized to "+action)
}
