package timeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/saaga0h/teferi-timeline/pkg/geo"
)

// DefaultSignificantDistance is the distance in meters beyond which two
// locations are treated as different places.
const DefaultSignificantDistance = 100.0

// Location is a single GPS fix
type Location struct {
	Timestamp          time.Time `json:"timestamp"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Altitude           float64   `json:"altitude"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	VerticalAccuracy   float64   `json:"vertical_accuracy"`
	Speed              float64   `json:"speed"`
	Course             float64   `json:"course"`
}

// DistanceTo returns the great-circle distance to other in meters
func (l Location) DistanceTo(other Location) float64 {
	return geo.Distance(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// IsSignificantlyDifferent reports whether l is strictly later than from
// and further away than threshold meters.
func (l Location) IsSignificantlyDifferent(from Location, threshold float64) bool {
	return l.Timestamp.After(from.Timestamp) && l.DistanceTo(from) > threshold
}

// MotionEventType classifies what the user was doing during a segment
type MotionEventType string

const (
	MotionWalk    MotionEventType = "walk"
	MotionRun     MotionEventType = "run"
	MotionCycling MotionEventType = "cycling"
	MotionAuto    MotionEventType = "auto"
	MotionOther   MotionEventType = "other"
	MotionStill   MotionEventType = "still"
)

// Valid reports whether t is one of the known activity types
func (t MotionEventType) Valid() bool {
	switch t {
	case MotionWalk, MotionRun, MotionCycling, MotionAuto, MotionOther, MotionStill:
		return true
	}
	return false
}

// MotionEvent is a classified activity segment. End is exclusive.
type MotionEvent struct {
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Type  MotionEventType `json:"type"`
}

// Duration returns End - Start
func (e MotionEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// AnnotatedEvent is a motion segment paired with the best known location at
// its start. SubEvents lists the raw segments it was built from.
type AnnotatedEvent struct {
	Start     time.Time
	End       time.Time
	Type      MotionEventType
	Location  Location
	SubEvents []MotionEvent
}

// NewAnnotatedEvent wraps a single motion event
func NewAnnotatedEvent(event MotionEvent, location Location) AnnotatedEvent {
	return AnnotatedEvent{
		Start:     event.Start,
		End:       event.End,
		Type:      event.Type,
		Location:  location,
		SubEvents: []MotionEvent{event},
	}
}

// Duration returns End - Start
func (e AnnotatedEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// DefaultMergeGap is the gap below which two same-type events are mergeable
// when a pass does not say otherwise.
const DefaultMergeGap = 15 * time.Minute

// Mergeable reports whether next can be folded into e: same type and a gap
// strictly below maxGap, measured from whichever side comes first.
func (e AnnotatedEvent) Mergeable(next AnnotatedEvent, maxGap time.Duration) bool {
	if e.Type != next.Type {
		return false
	}
	gap := next.Start.Sub(e.End)
	if next.Start.Before(e.Start) {
		gap = e.Start.Sub(next.End)
	}
	if gap < 0 {
		gap = 0
	}
	return gap < maxGap
}

// Merge returns an event spanning both e and next, keeping e's location
func (e AnnotatedEvent) Merge(next AnnotatedEvent) AnnotatedEvent {
	merged := AnnotatedEvent{
		Start:     e.Start,
		End:       e.End,
		Type:      e.Type,
		Location:  e.Location,
		SubEvents: make([]MotionEvent, 0, len(e.SubEvents)+len(next.SubEvents)),
	}
	if next.Start.Before(merged.Start) {
		merged.Start = next.Start
	}
	if next.End.After(merged.End) {
		merged.End = next.End
	}
	merged.SubEvents = append(merged.SubEvents, e.SubEvents...)
	merged.SubEvents = append(merged.SubEvents, next.SubEvents...)
	return merged
}

// Category is what a time slot was spent on
type Category string

const (
	CategoryCommute   Category = "commute"
	CategoryFood      Category = "food"
	CategoryFriends   Category = "friends"
	CategoryWork      Category = "work"
	CategoryLeisure   Category = "leisure"
	CategoryFitness   Category = "fitness"
	CategoryHousehold Category = "household"
	CategoryShopping  Category = "shopping"
	CategoryHobby     Category = "hobby"
	CategoryFamily    Category = "family"
	CategorySleep     Category = "sleep"
	CategoryUnknown   Category = "unknown"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryCommute, CategoryFood, CategoryFriends, CategoryWork, CategoryLeisure,
		CategoryFitness, CategoryHousehold, CategoryShopping, CategoryHobby,
		CategoryFamily, CategorySleep, CategoryUnknown:
		return true
	}
	return false
}

// CategoryForActivity maps an activity onto the category its slot starts with
func CategoryForActivity(t MotionEventType) Category {
	switch t {
	case MotionCycling, MotionRun:
		return CategoryFitness
	case MotionWalk, MotionAuto:
		return CategoryCommute
	default:
		return CategoryUnknown
	}
}

// SmartGuess is a learned association between a place and a category.
// Values are immutable; the store owns the canonical record.
type SmartGuess struct {
	ID         string    `json:"id"`
	Category   Category  `json:"category"`
	Location   Location  `json:"location"`
	LastUsed   time.Time `json:"last_used"`
	ErrorCount int       `json:"error_count"`
}

// WithLastUsed returns a copy of g used at t
func (g SmartGuess) WithLastUsed(t time.Time) SmartGuess {
	g.LastUsed = t
	return g
}

// WithStrike returns a copy of g with one more recorded mistake
func (g SmartGuess) WithStrike() SmartGuess {
	g.ErrorCount++
	return g
}

// TemporaryTimeSlot is a provisional slot that has not been persisted yet
type TemporaryTimeSlot struct {
	Start      time.Time
	End        *time.Time
	Category   Category
	Location   *Location
	Activity   MotionEventType
	SmartGuess *SmartGuess
}

// Duration returns the slot length and whether the slot is closed
func (s TemporaryTimeSlot) Duration() (time.Duration, bool) {
	if s.End == nil {
		return 0, false
	}
	return s.End.Sub(s.Start), true
}

// TimeSlot is a persisted, labelled segment of the user's day
type TimeSlot struct {
	ID                   string          `json:"id"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              *time.Time      `json:"end_time,omitempty"`
	Category             Category        `json:"category"`
	SmartGuessID         string          `json:"smart_guess_id,omitempty"`
	Location             *Location       `json:"location,omitempty"`
	CategoryWasSetByUser bool            `json:"category_was_set_by_user"`
	Activity             MotionEventType `json:"activity,omitempty"`
}

// Duration returns the slot length. Open slots run until now but never past
// the midnight following their start.
func (s TimeSlot) Duration(now time.Time, loc *time.Location) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	end := now
	if midnight := nextMidnight(s.StartTime, loc); midnight.Before(end) {
		end = midnight
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}

// TrackEventKind tags the variant held by a TrackEvent
type TrackEventKind string

const (
	TrackEventNewLocation TrackEventKind = "newLocation"
)

// TrackEvent is a raw event as buffered before the pipeline consumes it.
// NewLocation is currently the only variant.
type TrackEvent struct {
	Kind     TrackEventKind
	location Location
}

// NewLocationEvent wraps a location
func NewLocationEvent(location Location) TrackEvent {
	return TrackEvent{Kind: TrackEventNewLocation, location: location}
}

// AsLocation returns the wrapped location when the event is a NewLocation
func (e TrackEvent) AsLocation() (Location, bool) {
	if e.Kind != TrackEventNewLocation {
		return Location{}, false
	}
	return e.location, true
}

type trackEventJSON struct {
	Type     TrackEventKind `json:"type"`
	Location *Location      `json:"location,omitempty"`
}

// MarshalJSON encodes the event as {"type": ..., "location": {...}}
func (e TrackEvent) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case TrackEventNewLocation:
		loc := e.location
		return json.Marshal(trackEventJSON{Type: e.Kind, Location: &loc})
	default:
		return nil, fmt.Errorf("unknown track event kind %q", e.Kind)
	}
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON
func (e *TrackEvent) UnmarshalJSON(data []byte) error {
	var raw trackEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case TrackEventNewLocation:
		if raw.Location == nil {
			return fmt.Errorf("newLocation event without location")
		}
		*e = NewLocationEvent(*raw.Location)
		return nil
	default:
		return fmt.Errorf("unknown track event kind %q", raw.Type)
	}
}
