package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrPanic       = errors.New("handler panic")
	ErrRateLimited = errors.New("rate limited")
)
