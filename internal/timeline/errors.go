package timeline

import "errors"

var (
	// ErrNoLocations aborts a run that has no location to annotate events with
	ErrNoLocations = errors.New("no locations available")

	// ErrNegativeDuration is returned by a TimeSlotStore when a new slot would
	// not start after the slot it closes
	ErrNegativeDuration = errors.New("time slot would have a negative duration")

	// ErrSlotNotFound is returned when a slot id is unknown
	ErrSlotNotFound = errors.New("time slot not found")
)
