package timeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/knn"
)

// SmartGuessConfig tunes the KNN category guesser
type SmartGuessConfig struct {
	// Radius in meters; also the unit distances are normalized by
	Radius   float64
	K        int
	Lookback time.Duration
}

// DefaultSmartGuessConfig returns the standard guesser settings
func DefaultSmartGuessConfig() SmartGuessConfig {
	return SmartGuessConfig{
		Radius:   400,
		K:        3,
		Lookback: 15 * 24 * time.Hour,
	}
}

// SmartGuesser predicts categories for places from past guesses nearby
type SmartGuesser struct {
	store  SmartGuessStore
	clock  Clock
	config SmartGuessConfig
	logger *slog.Logger
}

// NewSmartGuesser creates a guesser backed by store
func NewSmartGuesser(store SmartGuessStore, clock Clock, cfg SmartGuessConfig, logger *slog.Logger) *SmartGuesser {
	return &SmartGuesser{
		store:  store,
		clock:  clock,
		config: cfg,
		logger: logger.With("component", "smart_guesser"),
	}
}

// Get returns the guess for location, or nil when no recent non-commute
// guess lies within the radius.
func (g *SmartGuesser) Get(ctx context.Context, location Location) *SmartGuess {
	since := g.clock.Now().Add(-g.config.Lookback)

	candidates, err := g.store.GuessesNear(ctx, location, g.config.Radius, since, CategoryCommute)
	if err != nil {
		g.logger.Warn("Failed to load smart guesses", "error", err)
		return nil
	}

	pool := make([]SmartGuess, 0, len(candidates))
	samples := make([]knn.Sample[Category], 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Category == CategoryCommute || candidate.LastUsed.Before(since) {
			continue
		}
		distance := location.DistanceTo(candidate.Location)
		if distance > g.config.Radius {
			continue
		}
		pool = append(pool, candidate)
		samples = append(samples, knn.Sample[Category]{
			Label:    candidate.Category,
			Distance: distance / g.config.Radius,
		})
	}

	result, ok := knn.Classify(samples, g.config.K)
	if !ok {
		return nil
	}

	guess := pool[result.Index]
	g.logger.Debug("Smart guess",
		"category", guess.Category,
		"guess_id", guess.ID,
		"pool", len(pool),
		"score", result.Score)
	return &guess
}

// Guess fills in the category of every unknown slot that has a location and
// a matching guess. Other slots are returned unchanged.
func (g *SmartGuesser) Guess(ctx context.Context, slots []TemporaryTimeSlot) []TemporaryTimeSlot {
	out := make([]TemporaryTimeSlot, len(slots))
	copy(out, slots)

	for i := range out {
		if out[i].Category != CategoryUnknown || out[i].Location == nil {
			continue
		}
		guess := g.Get(ctx, *out[i].Location)
		if guess == nil {
			continue
		}
		out[i].Category = guess.Category
		out[i].SmartGuess = guess
	}
	return out
}
