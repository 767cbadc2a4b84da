package timeline

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner records run bookkeeping and purges consumed raw events
type Cleaner struct {
	settings  SettingsStore
	locations LocationSource
	clock     Clock
	logger    *slog.Logger
}

// NewCleaner creates a cleaner
func NewCleaner(settings SettingsStore, locations LocationSource, clock Clock, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		settings:  settings,
		locations: locations,
		clock:     clock,
		logger:    logger.With("component", "cleaner"),
	}
}

// CleanUp stores the last known location (the batch's last slot location,
// else observed), stamps the generation time and clears raw locations up to
// consumedThrough. Each step runs even if an earlier one failed.
func (c *Cleaner) CleanUp(ctx context.Context, slots []TemporaryTimeSlot, observed *Location, consumedThrough time.Time) {
	location := observed
	if n := len(slots); n > 0 && slots[n-1].Location != nil {
		location = slots[n-1].Location
	}
	if location != nil {
		if err := c.settings.SetLastKnownLocation(ctx, *location); err != nil {
			c.logger.Warn("Failed to store last known location", "error", err)
		}
	}

	now := c.clock.Now()
	if err := c.settings.SetLastGenerationTime(ctx, now); err != nil {
		c.logger.Warn("Failed to store last generation time", "error", err)
	}

	if err := c.locations.Clear(ctx, consumedThrough); err != nil {
		c.logger.Warn("Failed to clear consumed locations", "error", err)
	}
}
