package timer

import "errors"

// Domain errors for the timer package.
var (
	// ErrNilCallback is returned when Set is called without a callback.
	ErrNilCallback = errors.New("timer: nil callback")

	// ErrInvalidPeriod is returned for negative periods, or a zero period
	// on a repeating timer.
	ErrInvalidPeriod = errors.New("timer: invalid period")

	// ErrStopped is returned when arming a timer after Run has returned.
	ErrStopped = errors.New("timer: queue stopped")
)
