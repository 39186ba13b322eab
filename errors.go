package funnel

import "errors"

var (
	// ErrClosed is returned by Submit after Close has been called.
	ErrClosed = errors.New("funnel: dispatcher closed")

	// ErrNilTask is returned by Submit for a nil task.
	ErrNilTask = errors.New("funnel: nil task")
)
