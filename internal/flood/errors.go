package flood

import "errors"

var (
	// ErrBudgetExhausted is returned once max_events events have been written.
	ErrBudgetExhausted = errors.New("event budget exhausted")
	// ErrStalled is wrapped in the transport error returned when a client stops
	// reading for longer than the stall timeout.
	ErrStalled = errors.New("client stalled")
)
