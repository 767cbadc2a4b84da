package timeline

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// AnnotatorConfig tunes event annotation
type AnnotatorConfig struct {
	// SignificantDistance in meters separates two places
	SignificantDistance float64
	// DefaultLookback is used when nothing has been generated before
	DefaultLookback time.Duration
	// WalkingSpeedLimit in m/s splits inferred walks from rides
	WalkingSpeedLimit float64
}

// DefaultAnnotatorConfig returns the standard annotation settings
func DefaultAnnotatorConfig() AnnotatorConfig {
	return AnnotatorConfig{
		SignificantDistance: DefaultSignificantDistance,
		DefaultLookback:     7 * 24 * time.Hour,
		WalkingSpeedLimit:   2.5,
	}
}

// Annotation is the outcome of the annotation stage
type Annotation struct {
	Events []AnnotatedEvent
	Since  time.Time
	// LastLocation is the latest location kept after deduplication
	LastLocation *Location
	// ConsumedThrough is the newest raw location timestamp read in this run
	ConsumedThrough time.Time
}

// Annotator pairs motion segments with the location the user was at when
// each segment started.
type Annotator struct {
	motion    MotionSource
	locations LocationSource
	settings  SettingsStore
	slots     TimeSlotStore
	clock     Clock
	config    AnnotatorConfig
	logger    *slog.Logger
}

// NewAnnotator creates an annotator over the given sources
func NewAnnotator(motion MotionSource, locations LocationSource, settings SettingsStore,
	slots TimeSlotStore, clock Clock, cfg AnnotatorConfig, logger *slog.Logger) *Annotator {
	return &Annotator{
		motion:    motion,
		locations: locations,
		settings:  settings,
		slots:     slots,
		clock:     clock,
		config:    cfg,
		logger:    logger.With("component", "annotator"),
	}
}

// Annotate reads the sources and returns one annotated event per motion
// segment since the last run. It fails with ErrNoLocations when neither a
// stored nor a raw location exists.
func (a *Annotator) Annotate(ctx context.Context) (Annotation, error) {
	now := a.clock.Now()
	since := a.since(ctx, now)

	raw := a.pendingLocations(ctx)
	observations := make([]Location, 0, len(raw)+1)
	if lastKnown := a.lastKnownLocation(ctx); lastKnown != nil {
		observations = append(observations, *lastKnown)
	}
	observations = append(observations, raw...)

	if len(observations) == 0 {
		return Annotation{}, ErrNoLocations
	}

	locations := FilterLocations(observations, a.config.SignificantDistance)

	motion := a.activities(ctx, since, now)
	if len(motion) == 0 {
		motion = InferMotion(advancing(observations), now, a.config.SignificantDistance, a.config.WalkingSpeedLimit)
		if len(motion) > 0 {
			a.logger.Debug("No motion activity, inferred segments from locations",
				"segments", len(motion))
		}
	}
	motion = clipEvents(motion, since, now)

	events := make([]AnnotatedEvent, 0, len(motion))
	for _, event := range motion {
		events = append(events, NewAnnotatedEvent(event, locationAt(locations, event.Start)))
	}

	last := locations[len(locations)-1]
	annotation := Annotation{
		Events:          events,
		Since:           since,
		LastLocation:    &last,
		ConsumedThrough: now,
	}
	if len(raw) > 0 {
		annotation.ConsumedThrough = raw[len(raw)-1].Timestamp
	}

	a.logger.Debug("Annotated events",
		"since", since,
		"raw_locations", len(raw),
		"kept_locations", len(locations),
		"events", len(events))

	return annotation, nil
}

// SlotResolution is the finest slot start the stores distinguish
const SlotResolution = time.Millisecond

// since picks the start of the window this run covers
func (a *Annotator) since(ctx context.Context, now time.Time) time.Time {
	lastGeneration, err := a.settings.LastGenerationTime(ctx)
	if err != nil {
		a.logger.Warn("Failed to read last generation time", "error", err)
	} else if lastGeneration != nil {
		return *lastGeneration
	}

	lastSlot, err := a.slots.LastSlot(ctx)
	if err != nil {
		a.logger.Warn("Failed to read last time slot", "error", err)
	} else if lastSlot != nil {
		if lastSlot.EndTime != nil {
			return *lastSlot.EndTime
		}
		// The open slot keeps its start; new slots must begin after it
		return lastSlot.StartTime.Add(SlotResolution)
	}

	installDate, err := a.settings.InstallDate(ctx)
	if err != nil {
		a.logger.Warn("Failed to read install date", "error", err)
	} else if installDate != nil {
		return *installDate
	}

	return now.Add(-a.config.DefaultLookback)
}

func (a *Annotator) lastKnownLocation(ctx context.Context) *Location {
	location, err := a.settings.LastKnownLocation(ctx)
	if err != nil {
		a.logger.Warn("Failed to read last known location", "error", err)
		return nil
	}
	return location
}

func (a *Annotator) pendingLocations(ctx context.Context) []Location {
	locations, err := a.locations.AllPendingLocations(ctx)
	if err != nil {
		a.logger.Warn("Failed to read pending locations", "error", err)
		return nil
	}
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].Timestamp.Before(locations[j].Timestamp)
	})
	return locations
}

func (a *Annotator) activities(ctx context.Context, since, until time.Time) []MotionEvent {
	events, err := a.motion.Activities(ctx, since, until)
	if err != nil {
		a.logger.Warn("Failed to read motion activity", "error", err)
		return nil
	}
	return events
}

// FilterLocations keeps a location only when it is strictly later than and
// significantly different from the last location kept so far. Rejected
// locations are dropped; the locations kept before them stay.
func FilterLocations(locations []Location, threshold float64) []Location {
	kept := make([]Location, 0, len(locations))
	for _, location := range locations {
		if len(kept) == 0 || location.IsSignificantlyDifferent(kept[len(kept)-1], threshold) {
			kept = append(kept, location)
		}
	}
	return kept
}

// advancing drops locations whose timestamp does not move forward
func advancing(locations []Location) []Location {
	out := make([]Location, 0, len(locations))
	for _, location := range locations {
		if len(out) == 0 || location.Timestamp.After(out[len(out)-1].Timestamp) {
			out = append(out, location)
		}
	}
	return out
}

// InferMotion derives activity segments from consecutive location samples
// when no motion data is available. Each pair of samples becomes a segment:
// still when the user stayed put, walk or auto (by implied speed) when they
// moved further than threshold. The last sample opens a still segment up to
// now. A single sample gives no segments since there is nothing to compare.
func InferMotion(observations []Location, now time.Time, threshold, walkingSpeedLimit float64) []MotionEvent {
	if len(observations) < 2 {
		return nil
	}

	events := make([]MotionEvent, 0, len(observations))
	for i := 1; i < len(observations); i++ {
		prev, cur := observations[i-1], observations[i]

		activity := MotionStill
		if cur.IsSignificantlyDifferent(prev, threshold) {
			activity = MotionWalk
			if seconds := cur.Timestamp.Sub(prev.Timestamp).Seconds(); seconds > 0 &&
				cur.DistanceTo(prev)/seconds > walkingSpeedLimit {
				activity = MotionAuto
			}
		}
		events = append(events, MotionEvent{Start: prev.Timestamp, End: cur.Timestamp, Type: activity})
	}

	last := observations[len(observations)-1]
	if now.After(last.Timestamp) {
		events = append(events, MotionEvent{Start: last.Timestamp, End: now, Type: MotionStill})
	}
	return events
}

// clipEvents trims events to [since, until] and drops the ones left empty
func clipEvents(events []MotionEvent, since, until time.Time) []MotionEvent {
	clipped := make([]MotionEvent, 0, len(events))
	for _, event := range events {
		if event.Start.Before(since) {
			event.Start = since
		}
		if event.End.After(until) {
			event.End = until
		}
		if !event.End.After(event.Start) {
			continue
		}
		clipped = append(clipped, event)
	}
	sort.SliceStable(clipped, func(i, j int) bool {
		return clipped[i].Start.Before(clipped[j].Start)
	})
	return clipped
}

// locationAt returns the latest location at or before t, or the earliest
// location when all of them are later. locations must be non-empty and sorted.
func locationAt(locations []Location, t time.Time) Location {
	i := sort.Search(len(locations), func(i int) bool {
		return locations[i].Timestamp.After(t)
	})
	if i == 0 {
		return locations[0]
	}
	return locations[i-1]
}
