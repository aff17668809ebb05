package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed = errors.New("refresh queue closed")
	ErrFull   = errors.New("refresh queue full")
)
