package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
)

const slotColumns = `id, start_ms, end_ms, category, smart_guess_id, location_json, category_set_by_user, activity`

// TimeSlotStore persists time slots in postgres or sqlite
type TimeSlotStore struct {
	db      *sql.DB
	dialect Dialect
	tz      *time.Location
}

// NewTimeSlotStore creates a store. tz decides where days begin for SlotsForDay.
func NewTimeSlotStore(db *sql.DB, dialect Dialect, tz *time.Location) *TimeSlotStore {
	if tz == nil {
		tz = time.Local
	}
	return &TimeSlotStore{db: db, dialect: dialect, tz: tz}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (timeline.TimeSlot, error) {
	var (
		slot         timeline.TimeSlot
		startMs      int64
		endMs        sql.NullInt64
		category     string
		smartGuessID sql.NullString
		locationJSON sql.NullString
		activity     string
	)

	if err := row.Scan(&slot.ID, &startMs, &endMs, &category, &smartGuessID, &locationJSON, &slot.CategoryWasSetByUser, &activity); err != nil {
		return timeline.TimeSlot{}, err
	}

	slot.StartTime = time.UnixMilli(startMs).UTC()
	if endMs.Valid {
		end := time.UnixMilli(endMs.Int64).UTC()
		slot.EndTime = &end
	}
	slot.Category = timeline.Category(category)
	slot.SmartGuessID = smartGuessID.String
	slot.Activity = timeline.MotionEventType(activity)

	if locationJSON.Valid && locationJSON.String != "" {
		var location timeline.Location
		if err := json.Unmarshal([]byte(locationJSON.String), &location); err != nil {
			return timeline.TimeSlot{}, fmt.Errorf("failed to unmarshal slot location: %w", err)
		}
		slot.Location = &location
	}
	return slot, nil
}

func (s *TimeSlotStore) querySlots(ctx context.Context, query string, args ...any) ([]timeline.TimeSlot, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time slots: %w", err)
	}
	defer rows.Close()

	var slots []timeline.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time slot row: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time slot rows: %w", err)
	}
	return slots, nil
}

// LastSlot returns the slot with the latest start, or nil when the store is empty
func (s *TimeSlotStore) LastSlot(ctx context.Context) (*timeline.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots ORDER BY start_ms DESC LIMIT 1`

	slot, err := scanSlot(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last slot: %w", err)
	}
	return &slot, nil
}

// SlotsForDay returns the slots starting on the calendar day containing day
func (s *TimeSlotStore) SlotsForDay(ctx context.Context, day time.Time) ([]timeline.TimeSlot, error) {
	local := day.In(s.tz)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.tz)
	end := start.AddDate(0, 0, 1)

	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE start_ms >= ? AND start_ms < ? ORDER BY start_ms`
	return s.querySlots(ctx, query, start.UnixMilli(), end.UnixMilli())
}

// SlotsBetween returns slots starting in [from, to], ordered by start
func (s *TimeSlotStore) SlotsBetween(ctx context.Context, from, to time.Time) ([]timeline.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE start_ms >= ? AND start_ms <= ? ORDER BY start_ms`
	return s.querySlots(ctx, query, from.UnixMilli(), to.UnixMilli())
}

// SlotByID returns the slot with the given id, or nil when unknown
func (s *TimeSlotStore) SlotByID(ctx context.Context, id string) (*timeline.TimeSlot, error) {
	query := s.dialect.Rebind(`SELECT ` + slotColumns + ` FROM time_slots WHERE id = ?`)

	slot, err := scanSlot(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slot %s: %w", id, err)
	}
	return &slot, nil
}

// AddSlot closes the open slot at slot.StartTime and inserts slot in one
// transaction
func (s *TimeSlotStore) AddSlot(ctx context.Context, slot timeline.TimeSlot) (timeline.TimeSlot, error) {
	var locationJSON sql.NullString
	if slot.Location != nil {
		payload, err := json.Marshal(slot.Location)
		if err != nil {
			return timeline.TimeSlot{}, fmt.Errorf("failed to marshal slot location: %w", err)
		}
		locationJSON = sql.NullString{String: string(payload), Valid: true}
	}

	var endMs sql.NullInt64
	if slot.EndTime != nil {
		endMs = sql.NullInt64{Int64: slot.EndTime.UnixMilli(), Valid: true}
	}

	var smartGuessID sql.NullString
	if slot.SmartGuessID != "" {
		smartGuessID = sql.NullString{String: slot.SmartGuessID, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return timeline.TimeSlot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		lastID    string
		lastStart int64
		lastEnd   sql.NullInt64
	)
	err = tx.QueryRowContext(ctx, `SELECT id, start_ms, end_ms FROM time_slots ORDER BY start_ms DESC LIMIT 1`).
		Scan(&lastID, &lastStart, &lastEnd)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return timeline.TimeSlot{}, fmt.Errorf("failed to query last slot: %w", err)
	default:
		if slot.StartTime.UnixMilli() <= lastStart {
			return timeline.TimeSlot{}, timeline.ErrNegativeDuration
		}
		if !lastEnd.Valid {
			if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE time_slots SET end_ms = ? WHERE id = ?`),
				slot.StartTime.UnixMilli(), lastID); err != nil {
				return timeline.TimeSlot{}, fmt.Errorf("failed to close slot %s: %w", lastID, err)
			}
		}
	}

	insert := `INSERT INTO time_slots (` + slotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(insert),
		slot.ID,
		slot.StartTime.UnixMilli(),
		endMs,
		string(slot.Category),
		smartGuessID,
		locationJSON,
		slot.CategoryWasSetByUser,
		string(slot.Activity),
	); err != nil {
		return timeline.TimeSlot{}, fmt.Errorf("failed to insert slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return timeline.TimeSlot{}, fmt.Errorf("failed to commit slot: %w", err)
	}
	return slot, nil
}

// UpdateCategory changes a slot's category and records whether the user set it
func (s *TimeSlotStore) UpdateCategory(ctx context.Context, id string, category timeline.Category, setByUser bool) (timeline.TimeSlot, error) {
	query := s.dialect.Rebind(`UPDATE time_slots SET category = ?, category_set_by_user = ? WHERE id = ?`)

	result, err := s.db.ExecContext(ctx, query, string(category), setByUser, id)
	if err != nil {
		return timeline.TimeSlot{}, fmt.Errorf("failed to update slot category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return timeline.TimeSlot{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return timeline.TimeSlot{}, timeline.ErrSlotNotFound
	}

	slot, err := s.SlotByID(ctx, id)
	if err != nil {
		return timeline.TimeSlot{}, err
	}
	if slot == nil {
		return timeline.TimeSlot{}, timeline.ErrSlotNotFound
	}
	return *slot, nil
}
