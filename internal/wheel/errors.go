package wheel

import "errors"

var (
	// ErrInvalidInput rejects a draw request synchronously; nothing changes.
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyPool    = errors.New("pool is empty")
	ErrNoEligible   = errors.New("no eligible entries")
	// ErrBusy means a batch is running; the caller should wait or abort it.
	ErrBusy = errors.New("a draw is in progress")
)
