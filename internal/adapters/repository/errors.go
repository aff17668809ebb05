package repository

import "errors"

// Sentinel kinds for gateway errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrMissedStatus   = errors.New("missed is derived and cannot be stored")
	ErrInvalidDateKey = errors.New("invalid date key")
	ErrMissingUser    = errors.New("missing user id")
)
