package queue

import "errors"

var (
	// ErrNotFound is returned when no item exists for the given keys.
	ErrNotFound = errors.New("work item not found")
	// ErrItemFinal is returned when an update targets an item already in a
	// terminal state. Terminal items are immutable.
	ErrItemFinal = errors.New("work item is in a terminal state")
	// ErrUnknownStage is returned when an operation names a stage the store
	// was not opened with.
	ErrUnknownStage = errors.New("unknown stage")
)
