package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	motion    *memoryMotion
	locations *memoryLocations
	slots     *memorySlots
	guesses   *memoryGuesses
	settings  *memorySettings
	sink      *recordingSink
	clock     *TestClock
}

func newPipelineFixture(now time.Time) *pipelineFixture {
	return &pipelineFixture{
		motion:    &memoryMotion{},
		locations: &memoryLocations{},
		slots:     &memorySlots{tz: time.UTC},
		guesses:   &memoryGuesses{},
		settings:  &memorySettings{},
		sink:      &recordingSink{},
		clock:     &TestClock{currentTime: now},
	}
}

func (f *pipelineFixture) generator() *Generator {
	opts := DefaultOptions()
	opts.TimeZone = time.UTC
	return NewGenerator(Dependencies{
		Motion:    f.motion,
		Locations: f.locations,
		Slots:     f.slots,
		Guesses:   f.guesses,
		Settings:  f.settings,
		Metrics:   f.sink,
		Clock:     f.clock,
	}, opts, testLogger())
}

func TestGeneratorAbortsWithoutLocations(t *testing.T) {
	now := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	f := newPipelineFixture(now)
	f.motion.events = []MotionEvent{{Start: now.Add(-time.Hour), End: now, Type: MotionWalk}}

	created, err := f.generator().Run(context.Background())

	assert.ErrorIs(t, err, ErrNoLocations)
	assert.Nil(t, created)
	assert.Empty(t, f.slots.slots)
	assert.Nil(t, f.settings.lastGeneration)
	assert.Nil(t, f.locations.clearedAt)
	assert.Empty(t, f.sink.events)
}

func TestGeneratorSingleIsolatedSample(t *testing.T) {
	now := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	f := newPipelineFixture(now)

	// The day already has its opening slot.
	f.slots.slots = []TimeSlot{{ID: "morning", StartTime: time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC), Category: CategoryLeisure}}
	sample := offset(home, 0, now.Add(-10*time.Minute))
	f.locations.locations = []Location{sample}

	created, err := f.generator().Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, f.slots.slots, 1)
	// The sample becomes the reference point for the next run.
	require.NotNil(t, f.settings.lastKnown)
	assert.Equal(t, sample, *f.settings.lastKnown)
	assert.Empty(t, f.locations.locations)
}

func TestGeneratorShortCommute(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t0.Add(55 * time.Minute))
	f.settings.installDate = timePtr(t0.Add(-time.Hour))
	f.locations.locations = []Location{
		offset(home, 0, t0),
		offset(home, 200, t0.Add(45*time.Minute)),
	}

	created, err := f.generator().Run(context.Background())

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, t0, created[0].StartTime)
	assert.Equal(t, CategoryCommute, created[0].Category)
	assert.Equal(t, MotionWalk, created[0].Activity)
	assert.Equal(t, t0.Add(45*time.Minute), created[1].StartTime)
	assert.NotEqual(t, CategoryCommute, created[1].Category)
}

func TestGeneratorStationaryNoiseCollapses(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t0.Add(70 * time.Minute))
	f.settings.installDate = timePtr(t0.Add(-time.Hour))

	jitter := []float64{0, 12, 5, 18, 9, 15, 3}
	for i, meters := range jitter {
		f.locations.locations = append(f.locations.locations,
			offset(home, meters, t0.Add(time.Duration(i)*10*time.Minute)))
	}

	created, err := f.generator().Run(context.Background())

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, t0, created[0].StartTime)
	assert.NotEqual(t, CategoryCommute, created[0].Category)
}

func TestGeneratorWithMotionAndSmartGuess(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 7, 0, 0, 0, time.UTC)
	now := t0.Add(5 * time.Hour)
	f := newPipelineFixture(now)
	f.settings.lastGeneration = &t0

	office := offset(home, 3000, t0.Add(65*time.Minute))
	f.locations.locations = []Location{offset(home, 0, t0), office}
	f.motion.events = []MotionEvent{
		{Start: t0, End: t0.Add(40 * time.Minute), Type: MotionStill},
		{Start: t0.Add(40 * time.Minute), End: t0.Add(42 * time.Minute), Type: MotionOther},
		{Start: t0.Add(42 * time.Minute), End: t0.Add(65 * time.Minute), Type: MotionAuto},
		{Start: t0.Add(65 * time.Minute), End: t0.Add(66 * time.Minute), Type: MotionWalk},
		{Start: t0.Add(66 * time.Minute), End: now, Type: MotionStill},
	}
	f.guesses.guesses = []SmartGuess{{
		ID:       "office-guess",
		Category: CategoryWork,
		Location: offset(office, 30, t0.Add(-48*time.Hour)),
		LastUsed: t0.Add(-48 * time.Hour),
	}}

	created, err := f.generator().Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 3)

	assert.Equal(t, CategoryUnknown, created[0].Category)
	assert.Equal(t, CategoryCommute, created[1].Category)
	assert.Equal(t, CategoryWork, created[2].Category)
	assert.Equal(t, "office-guess", created[2].SmartGuessID)

	require.Len(t, f.guesses.marked, 1)
	assert.Equal(t, "office-guess", f.guesses.marked[0].id)
	assert.Equal(t, created[2].StartTime, f.guesses.marked[0].at)

	assert.Equal(t, 3, f.sink.count(MetricTimeSlotCreated))
	assert.Equal(t, 1, f.sink.count(MetricTimeSlotSmartGuessed))

	require.NotNil(t, f.settings.lastGeneration)
	assert.Equal(t, now, *f.settings.lastGeneration)
	require.NotNil(t, f.settings.lastKnown)
	assert.Equal(t, office, *f.settings.lastKnown)
}

func TestGeneratorResumesAfterOpenSlot(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 9, 0, 0, 0, time.UTC)
	now := t0.Add(3 * time.Hour)
	f := newPipelineFixture(now)

	// Settings were lost but the slot store still has the running slot
	f.slots.slots = []TimeSlot{{ID: "work", StartTime: t0, Category: CategoryWork}}
	f.locations.locations = []Location{offset(home, 0, t0)}
	f.motion.events = []MotionEvent{
		{Start: t0, End: t0.Add(time.Hour), Type: MotionCycling},
		{Start: t0.Add(time.Hour), End: now, Type: MotionAuto},
	}

	created, err := f.generator().Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Zero(t, f.slots.rejects)

	assert.Equal(t, t0.Add(SlotResolution), created[0].StartTime)
	assert.Equal(t, CategoryFitness, created[0].Category)
	assert.Equal(t, MotionCycling, created[0].Activity)
	assert.Equal(t, t0.Add(time.Hour), created[1].StartTime)
	assert.Equal(t, CategoryCommute, created[1].Category)

	require.Len(t, f.slots.slots, 3)
	require.NotNil(t, f.slots.slots[0].EndTime)
	assert.Equal(t, t0.Add(SlotResolution), *f.slots.slots[0].EndTime)
}

func TestGeneratorSplitsAtMidnight(t *testing.T) {
	t0 := time.Date(2025, 10, 29, 22, 0, 0, 0, time.UTC)
	now := time.Date(2025, 10, 30, 1, 0, 0, 0, time.UTC)
	f := newPipelineFixture(now)
	f.settings.lastGeneration = &t0
	f.locations.locations = []Location{offset(home, 0, t0)}
	f.motion.events = []MotionEvent{{Start: t0, End: now, Type: MotionStill}}

	created, err := f.generator().Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, t0, created[0].StartTime)
	assert.Equal(t, time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC), created[1].StartTime)
}

func TestGeneratorSecondRunIsQuiet(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t0.Add(time.Hour))
	f.settings.installDate = timePtr(t0.Add(-time.Hour))
	f.locations.locations = []Location{offset(home, 0, t0)}
	f.motion.events = []MotionEvent{{Start: t0, End: t0.Add(time.Hour), Type: MotionStill}}
	gen := f.generator()

	first, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Nothing new happened: the motion source has nothing past the last run.
	second, err := gen.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, f.slots.slots, 1)
}

func TestGeneratorCancelledContext(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 10, 0, 0, 0, time.UTC)
	f := newPipelineFixture(t0.Add(time.Hour))
	f.locations.locations = []Location{offset(home, 0, t0)}
	f.motion.events = []MotionEvent{{Start: t0, End: t0.Add(time.Hour), Type: MotionStill}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.generator().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.slots.slots)
	assert.Nil(t, f.settings.lastGeneration)
}
