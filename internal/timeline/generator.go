package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Generator runs the timeline pipeline:
// annotate, smooth, build, guess, process, persist, clean.
type Generator struct {
	mu sync.Mutex

	annotator *Annotator
	smoother  *Smoother
	guesser   *SmartGuesser
	processor *Processor
	persister *Persister
	cleaner   *Cleaner
	logger    *slog.Logger
}

// Dependencies groups the collaborators the pipeline runs against
type Dependencies struct {
	Motion    MotionSource
	Locations LocationSource
	Slots     TimeSlotStore
	Guesses   SmartGuessStore
	Settings  SettingsStore
	Metrics   MetricsSink
	Clock     Clock
}

// Options tunes the pipeline
type Options struct {
	Annotator  AnnotatorConfig
	SmartGuess SmartGuessConfig
	Passes     []TimelineProcessingPass
	TimeZone   *time.Location
}

// DefaultOptions returns the standard pipeline settings
func DefaultOptions() Options {
	return Options{
		Annotator:  DefaultAnnotatorConfig(),
		SmartGuess: DefaultSmartGuessConfig(),
		Passes:     DefaultPasses(),
		TimeZone:   time.Local,
	}
}

// NewGenerator wires the pipeline stages
func NewGenerator(deps Dependencies, opts Options, logger *slog.Logger) *Generator {
	return &Generator{
		annotator: NewAnnotator(deps.Motion, deps.Locations, deps.Settings, deps.Slots, deps.Clock, opts.Annotator, logger),
		smoother:  NewSmoother(opts.Passes, logger),
		guesser:   NewSmartGuesser(deps.Guesses, deps.Clock, opts.SmartGuess, logger),
		processor: NewProcessor(deps.Slots, deps.Settings, deps.Clock, opts.TimeZone, logger),
		persister: NewPersister(deps.Slots, deps.Guesses, deps.Metrics, deps.Clock, logger),
		cleaner:   NewCleaner(deps.Settings, deps.Locations, deps.Clock, logger),
		logger:    logger.With("component", "generator"),
	}
}

// Run brings the timeline up to date and returns the slots it created.
// Runs are serialized. When annotation fails nothing is written.
func (g *Generator) Run(ctx context.Context) ([]TimeSlot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()

	annotation, err := g.annotator.Annotate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate events: %w", err)
	}

	events := g.smoother.Smooth(annotation.Events)
	slots := BuildTemporarySlots(events)
	slots = g.guesser.Guess(ctx, slots)
	slots = g.processor.Process(ctx, slots)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("timeline run cancelled before persisting: %w", err)
	}

	created := g.persister.Persist(ctx, slots)
	g.cleaner.CleanUp(ctx, slots, annotation.LastLocation, annotation.ConsumedThrough)

	g.logger.Info("Timeline generated",
		"annotated_events", len(annotation.Events),
		"smoothed_events", len(events),
		"slots", len(slots),
		"created", len(created),
		"duration_ms", time.Since(start).Milliseconds())

	return created, nil
}
