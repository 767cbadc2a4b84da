package timeline

import (
	"log/slog"
	"time"
)

// PassKind distinguishes merge passes from filter passes
type PassKind int

const (
	PassMerge PassKind = iota
	PassFilter
)

func (k PassKind) String() string {
	if k == PassMerge {
		return "merge"
	}
	return "filter"
}

// TimelineProcessingPass is one smoothing step. Merge passes fold adjacent
// same-type events closer than Duration; filter passes absorb events shorter
// than Duration into their predecessor. An empty Types applies to all types.
type TimelineProcessingPass struct {
	Kind     PassKind
	Duration time.Duration
	Types    []MotionEventType
}

// Merge builds a merge pass
func Merge(maxGap time.Duration, types ...MotionEventType) TimelineProcessingPass {
	return TimelineProcessingPass{Kind: PassMerge, Duration: maxGap, Types: types}
}

// Filter builds a filter pass. A zero minDuration on a typed filter absorbs
// every event of those types.
func Filter(minDuration time.Duration, types ...MotionEventType) TimelineProcessingPass {
	return TimelineProcessingPass{Kind: PassFilter, Duration: minDuration, Types: types}
}

func (p TimelineProcessingPass) appliesTo(t MotionEventType) bool {
	if len(p.Types) == 0 {
		return true
	}
	for _, candidate := range p.Types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (p TimelineProcessingPass) absorbs(e AnnotatedEvent) bool {
	if !p.appliesTo(e.Type) {
		return false
	}
	if p.Duration == 0 && len(p.Types) > 0 {
		return true
	}
	return e.Duration() < p.Duration
}

// DefaultPasses is the standard smoothing sequence
func DefaultPasses() []TimelineProcessingPass {
	return []TimelineProcessingPass{
		Filter(0, MotionOther),
		Merge(30 * time.Minute),
		Filter(3*time.Minute, MotionStill, MotionRun, MotionCycling),
		Merge(60 * time.Minute),
		Filter(3*time.Minute, MotionWalk),
		Merge(3*time.Hour, MotionRun, MotionCycling, MotionAuto),
		Filter(5 * time.Minute),
	}
}

// Smoother collapses noisy activity segments into meaningful events
type Smoother struct {
	passes []TimelineProcessingPass
	logger *slog.Logger
}

// NewSmoother creates a smoother running the given passes in order
func NewSmoother(passes []TimelineProcessingPass, logger *slog.Logger) *Smoother {
	return &Smoother{
		passes: passes,
		logger: logger.With("component", "smoother"),
	}
}

// Smooth runs the pass sequence until it no longer changes the events.
// Every change removes at least one event, so this terminates, and the
// result is stable under another Smooth.
func (s *Smoother) Smooth(events []AnnotatedEvent) []AnnotatedEvent {
	current := events
	rounds := 0
	for {
		rounds++
		before := len(current)
		for _, pass := range s.passes {
			current = ApplyPass(current, pass)
		}
		if len(current) == before {
			break
		}
	}

	s.logger.Debug("Smoothed events", "input", len(events), "output", len(current), "rounds", rounds)
	return current
}

// ApplyPass runs a single pass over time-ordered events
func ApplyPass(events []AnnotatedEvent, pass TimelineProcessingPass) []AnnotatedEvent {
	if pass.Kind == PassMerge {
		return mergeEvents(events, pass)
	}
	return filterEvents(events, pass)
}

func mergeEvents(events []AnnotatedEvent, pass TimelineProcessingPass) []AnnotatedEvent {
	out := make([]AnnotatedEvent, 0, len(events))
	for _, event := range events {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if pass.appliesTo(event.Type) && pass.appliesTo(prev.Type) && prev.Mergeable(event, pass.Duration) {
				out[n-1] = prev.Merge(event)
				continue
			}
		}
		out = append(out, event)
	}
	return out
}

func filterEvents(events []AnnotatedEvent, pass TimelineProcessingPass) []AnnotatedEvent {
	out := make([]AnnotatedEvent, 0, len(events))
	for _, event := range events {
		if !pass.absorbs(event) {
			out = append(out, event)
			continue
		}
		n := len(out)
		if n == 0 {
			continue
		}
		prev := out[n-1]
		if event.End.After(prev.End) {
			prev.End = event.End
		}
		subEvents := make([]MotionEvent, 0, len(prev.SubEvents)+len(event.SubEvents))
		subEvents = append(subEvents, prev.SubEvents...)
		prev.SubEvents = append(subEvents, event.SubEvents...)
		out[n-1] = prev
	}
	return out
}
