package apperrors

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrNotFound                = errors.New("not found")
	ErrNoSnapshot              = errors.New("no snapshot")
	ErrSessionClosed           = errors.New("session is closed")
	ErrWrongScreen             = errors.New("operation not available on this screen")
	ErrNoSelection             = errors.New("no choice selected")
	ErrUnknownChoice           = errors.New("unknown choice")
	ErrLocked                  = errors.New("choice already locked")
	ErrNotLocked               = errors.New("choice not locked")
	ErrChangeOfMindUnavailable = errors.New("change of mind not available")
	ErrNoIntervention          = errors.New("no matching intervention")
)
