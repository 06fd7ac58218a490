package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrTokenAbsent means the recipient has no registered push token yet.
	ErrTokenAbsent = errors.New("push token absent")
)
