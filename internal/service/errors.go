package service

import "errors"

var (
	// ErrConflict marks a request that collides with existing state, e.g. a taken username.
	ErrConflict = errors.New("conflict")
	// ErrBadRequest marks invalid input such as wrong credentials or an over-long username.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound marks an unknown id or token, or a failed ownership check.
	ErrNotFound = errors.New("not found")
)

// Error is a domain failure carrying its kind and a short human-readable reason.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func conflict(reason string) error   { return &Error{Kind: ErrConflict, Reason: reason} }
func badRequest(reason string) error { return &Error{Kind: ErrBadRequest, Reason: reason} }
func notFound(reason string) error   { return &Error{Kind: ErrNotFound, Reason: reason} }
