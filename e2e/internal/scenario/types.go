package scenario

import "time"

// Scenario is a replayable day: raw device events placed relative to a
// virtual start, a moment to run the pipeline at, and the slots expected back
type Scenario struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Device       string        `yaml:"device"`
	VirtualStart time.Time     `yaml:"virtual_start"`
	RunAt        time.Duration `yaml:"run_at"` // offset from virtual_start
	Day          string        `yaml:"day,omitempty"`
	Events       []RawEvent    `yaml:"events"`
	Expectations Expectations  `yaml:"expectations"`
}

// Event kinds
const (
	KindLocation = "location"
	KindMotion   = "motion"
)

// RawEvent is one message published on teferi/raw/{kind}/{device}
type RawEvent struct {
	At          time.Duration `yaml:"at"` // offset from virtual_start
	Kind        string        `yaml:"kind"`
	Latitude    float64       `yaml:"latitude,omitempty"`
	Longitude   float64       `yaml:"longitude,omitempty"`
	Accuracy    float64       `yaml:"accuracy,omitempty"`
	Activity    string        `yaml:"activity,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`
	Description string        `yaml:"description"`
}

// Timestamp returns the absolute time of the event
func (e RawEvent) Timestamp(s *Scenario) time.Time {
	return s.VirtualStart.Add(e.At)
}

// Now returns the virtual time the pipeline runs at
func (s *Scenario) Now() time.Time {
	return s.VirtualStart.Add(s.RunAt)
}

// Expectations describe the slots listed for the scenario day after the run
type Expectations struct {
	SlotCount *int              `yaml:"slot_count,omitempty"`
	Slots     []SlotExpectation `yaml:"slots,omitempty"`
}

// SlotExpectation matches one listed slot, in order. Empty fields match anything.
type SlotExpectation struct {
	Category    string        `yaml:"category,omitempty"`
	NotCategory string        `yaml:"not_category,omitempty"`
	Activity    string        `yaml:"activity,omitempty"`
	MinDuration time.Duration `yaml:"min_duration,omitempty"`
}

// ObservedSlot is a slot as returned by the timeline API
type ObservedSlot struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	Category        string    `json:"category"`
	Activity        string    `json:"activity"`
	SmartGuessID    string    `json:"smart_guess_id"`
	DurationSeconds int64     `json:"duration_seconds"`
}

// TestResult represents the outcome of running a scenario
type TestResult struct {
	Scenario  string         `json:"scenario"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Passed    bool           `json:"passed"`
	Failures  []string       `json:"failures,omitempty"`
	Slots     []ObservedSlot `json:"slots"`
}
