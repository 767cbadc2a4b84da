package timeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// TestClock is a fixed clock for tests
type TestClock struct {
	currentTime time.Time
}

func (c *TestClock) Now() time.Time {
	if c.currentTime.IsZero() {
		return time.Date(2025, 10, 30, 19, 0, 0, 0, time.UTC)
	}
	return c.currentTime
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var errStoreDown = errors.New("store unavailable")

type memoryLocations struct {
	locations []Location
	clearedAt *time.Time
	readErr   error
}

func (m *memoryLocations) AllPendingLocations(ctx context.Context) ([]Location, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]Location, len(m.locations))
	copy(out, m.locations)
	return out, nil
}

func (m *memoryLocations) Clear(ctx context.Context, through time.Time) error {
	kept := m.locations[:0]
	for _, l := range m.locations {
		if l.Timestamp.After(through) {
			kept = append(kept, l)
		}
	}
	m.locations = kept
	m.clearedAt = &through
	return nil
}

type memoryMotion struct {
	events  []MotionEvent
	readErr error
}

func (m *memoryMotion) Activities(ctx context.Context, since, until time.Time) ([]MotionEvent, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []MotionEvent
	for _, e := range m.events {
		if e.End.After(since) && !e.Start.After(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

type memorySlots struct {
	mu      sync.Mutex
	slots   []TimeSlot
	tz      *time.Location
	rejects int
}

func (m *memorySlots) LastSlot(ctx context.Context) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.slots) == 0 {
		return nil, nil
	}
	last := m.slots[len(m.slots)-1]
	return &last, nil
}

func (m *memorySlots) SlotsForDay(ctx context.Context, day time.Time) ([]TimeSlot, error) {
	tz := m.tz
	if tz == nil {
		tz = time.UTC
	}
	from := startOfDay(day, tz)
	return m.SlotsBetween(ctx, from, nextMidnight(day, tz).Add(-time.Nanosecond))
}

func (m *memorySlots) SlotsBetween(ctx context.Context, from, to time.Time) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TimeSlot
	for _, s := range m.slots {
		if !s.StartTime.Before(from) && !s.StartTime.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memorySlots) AddSlot(ctx context.Context, slot TimeSlot) (TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.slots); n > 0 {
		last := &m.slots[n-1]
		if !slot.StartTime.After(last.StartTime) {
			m.rejects++
			return TimeSlot{}, ErrNegativeDuration
		}
		if last.EndTime == nil {
			end := slot.StartTime
			last.EndTime = &end
		}
	}
	m.slots = append(m.slots, slot)
	return slot, nil
}

func (m *memorySlots) SlotByID(ctx context.Context, id string) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memorySlots) UpdateCategory(ctx context.Context, id string, category Category, setByUser bool) (TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.slots {
		if m.slots[i].ID == id {
			m.slots[i].Category = category
			m.slots[i].CategoryWasSetByUser = setByUser
			return m.slots[i], nil
		}
	}
	return TimeSlot{}, ErrSlotNotFound
}

type markUsedCall struct {
	id string
	at time.Time
}

type memoryGuesses struct {
	guesses  []SmartGuess
	marked   []markUsedCall
	struck   []string
	added    []SmartGuess
	queries  int
	readErr  error
	excluded []Category
}

func (m *memoryGuesses) GuessesNear(ctx context.Context, location Location, meters float64, since time.Time, exclude ...Category) ([]SmartGuess, error) {
	m.queries++
	m.excluded = exclude
	if m.readErr != nil {
		return nil, m.readErr
	}
	// Deliberately loose: the guesser must apply its own filters.
	out := make([]SmartGuess, len(m.guesses))
	copy(out, m.guesses)
	return out, nil
}

func (m *memoryGuesses) MarkUsed(ctx context.Context, id string, at time.Time) error {
	m.marked = append(m.marked, markUsedCall{id: id, at: at})
	return nil
}

func (m *memoryGuesses) Add(ctx context.Context, guess SmartGuess) (SmartGuess, error) {
	m.added = append(m.added, guess)
	m.guesses = append(m.guesses, guess)
	return guess, nil
}

func (m *memoryGuesses) Strike(ctx context.Context, id string) error {
	m.struck = append(m.struck, id)
	return nil
}

type memorySettings struct {
	lastKnown      *Location
	lastGeneration *time.Time
	installDate    *time.Time
	readErr        error
}

func (m *memorySettings) LastKnownLocation(ctx context.Context) (*Location, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.lastKnown, nil
}

func (m *memorySettings) SetLastKnownLocation(ctx context.Context, location Location) error {
	m.lastKnown = &location
	return nil
}

func (m *memorySettings) LastGenerationTime(ctx context.Context) (*time.Time, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.lastGeneration, nil
}

func (m *memorySettings) SetLastGenerationTime(ctx context.Context, t time.Time) error {
	m.lastGeneration = &t
	return nil
}

func (m *memorySettings) InstallDate(ctx context.Context) (*time.Time, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.installDate, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []MetricEvent
}

func (r *recordingSink) Log(event MetricEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// offset returns a location roughly meters north of base
func offset(base Location, meters float64, at time.Time) Location {
	moved := base
	moved.Latitude += meters / 111195.0
	moved.Timestamp = at
	return moved
}

func timePtr(t time.Time) *time.Time {
	return &t
}
