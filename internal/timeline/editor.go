package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrInvalidCategory is returned for a category the user cannot assign
var ErrInvalidCategory = errors.New("invalid category")

// SlotEditor is the part of the time slot store that user edits need
type SlotEditor interface {
	SlotByID(ctx context.Context, id string) (*TimeSlot, error)
	UpdateCategory(ctx context.Context, id string, category Category, setByUser bool) (TimeSlot, error)
}

// GuessLearner is the part of the smart guess store that user edits need
type GuessLearner interface {
	Add(ctx context.Context, guess SmartGuess) (SmartGuess, error)
	Strike(ctx context.Context, id string) error
}

// Editor applies user corrections and feeds them back into smart guessing
type Editor struct {
	slots   SlotEditor
	guesses GuessLearner
	clock   Clock
	logger  *slog.Logger
}

// NewEditor creates an editor
func NewEditor(slots SlotEditor, guesses GuessLearner, clock Clock, logger *slog.Logger) *Editor {
	return &Editor{
		slots:   slots,
		guesses: guesses,
		clock:   clock,
		logger:  logger.With("component", "editor"),
	}
}

// Recategorize sets a slot's category on behalf of the user. A guess that
// produced a different category gets a strike, and the new category is
// learned for the slot's place unless it is a commute.
func (e *Editor) Recategorize(ctx context.Context, id string, category Category) (TimeSlot, error) {
	if !category.Valid() || category == CategoryUnknown {
		return TimeSlot{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	slot, err := e.slots.SlotByID(ctx, id)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("failed to load time slot: %w", err)
	}
	if slot == nil {
		return TimeSlot{}, ErrSlotNotFound
	}

	if slot.SmartGuessID != "" && slot.Category != category {
		if err := e.guesses.Strike(ctx, slot.SmartGuessID); err != nil {
			e.logger.Warn("Failed to strike smart guess", "guess_id", slot.SmartGuessID, "error", err)
		}
	}

	updated, err := e.slots.UpdateCategory(ctx, id, category, true)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("failed to update time slot: %w", err)
	}

	if category != CategoryCommute && slot.Location != nil {
		guess := SmartGuess{
			ID:       uuid.New().String(),
			Category: category,
			Location: *slot.Location,
			LastUsed: e.clock.Now(),
		}
		if _, err := e.guesses.Add(ctx, guess); err != nil {
			e.logger.Warn("Failed to learn smart guess", "slot_id", id, "error", err)
		}
	}

	e.logger.Info("Time slot recategorized", "slot_id", id, "from", slot.Category, "to", category)
	return updated, nil
}
