package timeline

import (
	"context"
	"time"
)

// Clock supplies the pipeline's notion of "now"
type Clock interface {
	Now() time.Time
}

// LocationSource buffers raw location events until the pipeline consumes them
type LocationSource interface {
	// AllPendingLocations returns buffered locations ordered by timestamp
	AllPendingLocations(ctx context.Context) ([]Location, error)

	// Clear discards buffered locations with timestamps up to and including through
	Clear(ctx context.Context, through time.Time) error
}

// MotionSource provides classified activity segments
type MotionSource interface {
	// Activities returns non-overlapping segments intersecting [since, until], ordered by start
	Activities(ctx context.Context, since, until time.Time) ([]MotionEvent, error)
}

// TimeSlotStore persists the user's timeline
type TimeSlotStore interface {
	LastSlot(ctx context.Context) (*TimeSlot, error)
	SlotsForDay(ctx context.Context, day time.Time) ([]TimeSlot, error)
	// SlotsBetween returns slots starting in [from, to], ordered by start
	SlotsBetween(ctx context.Context, from, to time.Time) ([]TimeSlot, error)
	// AddSlot closes the current open slot at slot.StartTime and inserts slot.
	// It fails with ErrNegativeDuration if slot does not start after the last slot.
	AddSlot(ctx context.Context, slot TimeSlot) (TimeSlot, error)
}

// SmartGuessStore persists learned place/category associations
type SmartGuessStore interface {
	// GuessesNear returns guesses within meters of location last used at or
	// after since, skipping the excluded categories
	GuessesNear(ctx context.Context, location Location, meters float64, since time.Time, exclude ...Category) ([]SmartGuess, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

// SettingsStore keeps the pipeline's bookkeeping between runs
type SettingsStore interface {
	LastKnownLocation(ctx context.Context) (*Location, error)
	SetLastKnownLocation(ctx context.Context, location Location) error
	LastGenerationTime(ctx context.Context) (*time.Time, error)
	SetLastGenerationTime(ctx context.Context, t time.Time) error
	InstallDate(ctx context.Context) (*time.Time, error)
}

// MetricsSink receives analytics events. Log must not block.
type MetricsSink interface {
	Log(event MetricEvent)
}

// MetricEvent is a single analytics event
type MetricEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Metric event names emitted by the pipeline
const (
	MetricTimeSlotCreated         = "timeSlotCreated"
	MetricTimeSlotSmartGuessed    = "timeSlotSmartGuessed"
	MetricTimeSlotNotSmartGuessed = "timeSlotNotSmartGuessed"
)
