package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryForActivity(t *testing.T) {
	tests := []struct {
		activity MotionEventType
		want     Category
	}{
		{MotionCycling, CategoryFitness},
		{MotionRun, CategoryFitness},
		{MotionOther, CategoryUnknown},
		{MotionStill, CategoryUnknown},
		{MotionWalk, CategoryCommute},
		{MotionAuto, CategoryCommute},
	}

	for _, tt := range tests {
		t.Run(string(tt.activity), func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryForActivity(tt.activity))
		})
	}
}

func TestIsSignificantlyDifferent(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC)
	base := offset(home, 0, t0)

	assert.True(t, offset(home, 150, t0.Add(time.Second)).IsSignificantlyDifferent(base, 100))
	assert.False(t, offset(home, 50, t0.Add(time.Second)).IsSignificantlyDifferent(base, 100))
	assert.False(t, offset(home, 150, t0).IsSignificantlyDifferent(base, 100))
	assert.False(t, offset(home, 150, t0.Add(-time.Second)).IsSignificantlyDifferent(base, 100))
}

func TestAnnotatedEventMergeable(t *testing.T) {
	t0 := time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC)
	a := NewAnnotatedEvent(MotionEvent{Start: t0, End: t0.Add(10 * time.Minute), Type: MotionWalk}, home)
	b := NewAnnotatedEvent(MotionEvent{Start: t0.Add(20 * time.Minute), End: t0.Add(30 * time.Minute), Type: MotionWalk}, home)
	c := NewAnnotatedEvent(MotionEvent{Start: t0.Add(20 * time.Minute), End: t0.Add(30 * time.Minute), Type: MotionRun}, home)

	assert.True(t, a.Mergeable(b, DefaultMergeGap))
	assert.True(t, b.Mergeable(a, DefaultMergeGap), "gap is measured from either side")
	assert.False(t, a.Mergeable(b, 10*time.Minute))
	assert.False(t, a.Mergeable(c, DefaultMergeGap))

	merged := a.Merge(b)
	assert.Equal(t, t0, merged.Start)
	assert.Equal(t, t0.Add(30*time.Minute), merged.End)
	assert.Equal(t, []MotionEvent{a.SubEvents[0], b.SubEvents[0]}, merged.SubEvents)
}

func TestSmartGuessCopies(t *testing.T) {
	original := SmartGuess{ID: "g", Category: CategoryWork, ErrorCount: 1}
	used := original.WithLastUsed(time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC))
	struck := original.WithStrike()

	assert.True(t, original.LastUsed.IsZero())
	assert.Equal(t, 1, original.ErrorCount)
	assert.False(t, used.LastUsed.IsZero())
	assert.Equal(t, 2, struck.ErrorCount)
}

func TestTrackEventJSON(t *testing.T) {
	loc := offset(home, 0, time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC))
	event := NewLocationEvent(loc)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"newLocation"`)

	var decoded TrackEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	got, ok := decoded.AsLocation()
	require.True(t, ok)
	assert.True(t, loc.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, loc.Latitude, got.Latitude)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"visit"}`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"newLocation"}`), &decoded))

	_, ok = TrackEvent{}.AsLocation()
	assert.False(t, ok)
}
