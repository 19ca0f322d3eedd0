// README: Error taxonomy shared by all modules; handlers map these to HTTP status codes.
package types

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrValidation      = errors.New("validation error")
	ErrExternalService = errors.New("external service error")
)
