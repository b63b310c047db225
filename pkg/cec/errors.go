package cec

import "errors"

var (
	// ErrInvalidLength indicates a frame is empty or longer than MaxMessageLen.
	ErrInvalidLength = errors.New("invalid message length")
	// ErrBusy indicates a frame is already being sent.
	ErrBusy = errors.New("busy")
)
