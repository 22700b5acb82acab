package worker

import (
	"errors"
)

// Sentinel errors returned by the pool.
var (
	ErrPoolStopped = errors.New("worker pool is not running")
	ErrTaskPanic   = errors.New("task panicked")
)
