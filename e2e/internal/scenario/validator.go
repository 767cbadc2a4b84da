package scenario

import (
	"fmt"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
)

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("scenario description is required")
	}

	if s.VirtualStart.IsZero() {
		return fmt.Errorf("virtual_start is required")
	}

	if s.Day != "" {
		if _, err := time.Parse("2006-01-02", s.Day); err != nil {
			return fmt.Errorf("day must be formatted as YYYY-MM-DD: %w", err)
		}
	}

	if err := validateEvents(s.Events, s.RunAt); err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	return nil
}

func validateEvents(events []RawEvent, runAt time.Duration) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event is required")
	}

	var previous time.Duration
	for i, event := range events {
		if event.At < 0 {
			return fmt.Errorf("event %d: time cannot be negative", i)
		}
		if event.At < previous {
			return fmt.Errorf("event %d: events must be in chronological order", i)
		}
		previous = event.At

		if event.At > runAt {
			return fmt.Errorf("event %d: happens after run_at", i)
		}

		if event.Description == "" {
			return fmt.Errorf("event %d: description is required", i)
		}

		switch event.Kind {
		case KindLocation:
			if event.Latitude < -90 || event.Latitude > 90 || event.Longitude < -180 || event.Longitude > 180 {
				return fmt.Errorf("event %d: coordinates out of range", i)
			}
		case KindMotion:
			if !timeline.MotionEventType(event.Activity).Valid() {
				return fmt.Errorf("event %d: unknown activity %q", i, event.Activity)
			}
			if event.Duration <= 0 {
				return fmt.Errorf("event %d: motion events require a positive duration", i)
			}
		default:
			return fmt.Errorf("event %d: kind must be %q or %q", i, KindLocation, KindMotion)
		}
	}

	return nil
}

func validateExpectations(e Expectations) error {
	if e.SlotCount == nil && len(e.Slots) == 0 {
		return fmt.Errorf("at least one of slot_count or slots is required")
	}
	if e.SlotCount != nil && *e.SlotCount < 0 {
		return fmt.Errorf("slot_count cannot be negative")
	}

	for i, slot := range e.Slots {
		if slot.Category != "" && !timeline.Category(slot.Category).Valid() {
			return fmt.Errorf("slot %d: unknown category %q", i, slot.Category)
		}
		if slot.NotCategory != "" && !timeline.Category(slot.NotCategory).Valid() {
			return fmt.Errorf("slot %d: unknown category %q", i, slot.NotCategory)
		}
		if slot.Activity != "" && !timeline.MotionEventType(slot.Activity).Valid() {
			return fmt.Errorf("slot %d: unknown activity %q", i, slot.Activity)
		}
	}

	return nil
}
