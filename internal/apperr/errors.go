package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrOutOfRange        = errors.New("out of range")
	ErrMissingCredential = errors.New("missing API credential")
)
