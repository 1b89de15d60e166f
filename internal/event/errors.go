package event

import "errors"

var (
	// ErrStopped is returned when work is offered to a loop that has stopped.
	ErrStopped = errors.New("event: loop stopped")

	// ErrAlreadyRunning is returned by Run when another Run is active.
	ErrAlreadyRunning = errors.New("event: loop already running")
)
