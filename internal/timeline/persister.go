package timeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Persister writes finalized slots and reports what was created
type Persister struct {
	slots   TimeSlotStore
	guesses SmartGuessStore
	metrics MetricsSink
	clock   Clock
	logger  *slog.Logger
}

// NewPersister creates a persister
func NewPersister(slots TimeSlotStore, guesses SmartGuessStore, metrics MetricsSink, clock Clock, logger *slog.Logger) *Persister {
	return &Persister{
		slots:   slots,
		guesses: guesses,
		metrics: metrics,
		clock:   clock,
		logger:  logger.With("component", "persister"),
	}
}

// Persist adds each slot to the store in order. A rejected slot is logged
// and skipped; slots already added stay. It returns the slots stored from
// the first new one up to now.
func (p *Persister) Persist(ctx context.Context, slots []TemporaryTimeSlot) []TimeSlot {
	var (
		firstStart *TimeSlot
		added      int
	)

	for _, temp := range slots {
		slot := TimeSlot{
			ID:        uuid.New().String(),
			StartTime: temp.Start,
			Category:  temp.Category,
			Location:  temp.Location,
			Activity:  temp.Activity,
		}
		if temp.SmartGuess != nil {
			slot.SmartGuessID = temp.SmartGuess.ID
		}

		created, err := p.slots.AddSlot(ctx, slot)
		if err != nil {
			p.logger.Warn("Time slot rejected by store",
				"start", slot.StartTime,
				"category", slot.Category,
				"error", err)
			continue
		}
		added++
		if firstStart == nil {
			firstStart = &created
		}
	}

	var persisted []TimeSlot
	if firstStart != nil {
		var err error
		persisted, err = p.slots.SlotsBetween(ctx, firstStart.StartTime, p.clock.Now())
		if err != nil {
			p.logger.Warn("Failed to read back created slots", "error", err)
		}
		for _, slot := range persisted {
			p.logCreated(slot)
		}
	}

	for _, use := range latestGuessUses(slots) {
		if err := p.guesses.MarkUsed(ctx, use.id, use.at); err != nil {
			p.logger.Warn("Failed to mark smart guess used",
				"guess_id", use.id,
				"error", err)
		}
	}

	p.logger.Info("Persisted time slots", "requested", len(slots), "added", added)
	return persisted
}

type guessUse struct {
	id string
	at time.Time
}

// latestGuessUses returns one use per guess, at the latest slot start that
// carries it. Pieces of a slot split at midnight share a guess.
func latestGuessUses(slots []TemporaryTimeSlot) []guessUse {
	var uses []guessUse
	index := make(map[string]int)
	for _, temp := range slots {
		if temp.SmartGuess == nil {
			continue
		}
		id := temp.SmartGuess.ID
		if i, ok := index[id]; ok {
			if temp.Start.After(uses[i].at) {
				uses[i].at = temp.Start
			}
			continue
		}
		index[id] = len(uses)
		uses = append(uses, guessUse{id: id, at: temp.Start})
	}
	return uses
}

func (p *Persister) logCreated(slot TimeSlot) {
	now := p.clock.Now()
	attributes := map[string]any{
		"slot_id":  slot.ID,
		"category": string(slot.Category),
		"start":    slot.StartTime,
	}

	p.metrics.Log(MetricEvent{Name: MetricTimeSlotCreated, Timestamp: now, Attributes: attributes})
	if slot.SmartGuessID != "" {
		p.metrics.Log(MetricEvent{Name: MetricTimeSlotSmartGuessed, Timestamp: now, Attributes: attributes})
	} else {
		p.metrics.Log(MetricEvent{Name: MetricTimeSlotNotSmartGuessed, Timestamp: now, Attributes: attributes})
	}
}
