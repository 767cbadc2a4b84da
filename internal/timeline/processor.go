package timeline

import (
	"context"
	"log/slog"
	"time"
)

// Processor enforces the day-boundary rules on provisional slots
type Processor struct {
	slots    TimeSlotStore
	settings SettingsStore
	clock    Clock
	tz       *time.Location
	logger   *slog.Logger
}

// NewProcessor creates a processor using tz for calendar days
func NewProcessor(slots TimeSlotStore, settings SettingsStore, clock Clock, tz *time.Location, logger *slog.Logger) *Processor {
	if tz == nil {
		tz = time.Local
	}
	return &Processor{
		slots:    slots,
		settings: settings,
		clock:    clock,
		tz:       tz,
		logger:   logger.With("component", "processor"),
	}
}

// Process splits slots at midnight and makes sure today has a slot
func (p *Processor) Process(ctx context.Context, slots []TemporaryTimeSlot) []TemporaryTimeSlot {
	out := SplitAtMidnight(slots, p.tz)
	return p.ensureToday(ctx, out)
}

// SplitAtMidnight cuts every closed slot at each midnight it spans. The
// pieces keep the original category, location, activity and guess.
func SplitAtMidnight(slots []TemporaryTimeSlot, tz *time.Location) []TemporaryTimeSlot {
	out := make([]TemporaryTimeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.End == nil {
			out = append(out, slot)
			continue
		}
		end := *slot.End
		for {
			midnight := nextMidnight(slot.Start, tz)
			if !midnight.Before(end) {
				break
			}
			piece := slot
			pieceEnd := midnight
			piece.End = &pieceEnd
			out = append(out, piece)
			slot.Start = midnight
		}
		last := end
		slot.End = &last
		out = append(out, slot)
	}
	return out
}

func (p *Processor) ensureToday(ctx context.Context, slots []TemporaryTimeSlot) []TemporaryTimeSlot {
	now := p.clock.Now()

	for _, slot := range slots {
		if sameDay(slot.Start, now, p.tz) {
			return slots
		}
	}

	persisted, err := p.slots.SlotsForDay(ctx, now)
	if err != nil {
		p.logger.Warn("Failed to read today's slots", "error", err)
	}
	if len(persisted) > 0 {
		return slots
	}

	var location *Location
	if n := len(slots); n > 0 && slots[n-1].Location != nil {
		location = slots[n-1].Location
	} else if stored, err := p.settings.LastKnownLocation(ctx); err != nil {
		p.logger.Warn("Failed to read last known location", "error", err)
	} else {
		location = stored
	}

	p.logger.Debug("No slot for today, adding leisure slot", "start", now)
	return append(slots, TemporaryTimeSlot{
		Start:    now,
		Category: CategoryLeisure,
		Location: location,
	})
}
