package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/teferi-timeline/internal/agent"
	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/health"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

var now = time.Date(2025, 10, 30, 19, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

type fakeRefresher struct {
	summary agent.Summary
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context, trigger string) (agent.Summary, error) {
	f.summary.Trigger = trigger
	return f.summary, f.err
}

type fakeDays struct {
	slots     []timeline.TimeSlot
	requested time.Time
	err       error
}

func (f *fakeDays) SlotsForDay(ctx context.Context, day time.Time) ([]timeline.TimeSlot, error) {
	f.requested = day
	return f.slots, f.err
}

type fakeEditor struct {
	err      error
	id       string
	category timeline.Category
}

func (f *fakeEditor) Recategorize(ctx context.Context, id string, category timeline.Category) (timeline.TimeSlot, error) {
	f.id, f.category = id, category
	if f.err != nil {
		return timeline.TimeSlot{}, f.err
	}
	return timeline.TimeSlot{ID: id, StartTime: now, Category: category, CategoryWasSetByUser: true}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(refresher Refresher, days DayReader, editor Recategorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := NewTimelineHandler(refresher, days, editor, fixedClock{}, time.UTC, logger)
	broker := mqtt.NewMemoryClient()
	broker.Connect(context.Background())
	return SetupRouter(handler, health.NewChecker(broker, redis.NewMemoryClient(), nil, logger))
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestRefreshEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "success", wantCode: http.StatusOK},
		{name: "already running", err: agent.ErrRefreshInProgress, wantCode: http.StatusConflict},
		{name: "pipeline failure", err: timeline.ErrNoLocations, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{summary: agent.Summary{RunID: "run-1", Slots: 2}, err: tt.err}
			r := setup(refresher, &fakeDays{}, &fakeEditor{})

			w, env := do(t, r, http.MethodPost, "/api/v1/timeline/refresh", "")
			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantCode == http.StatusOK {
				var summary agent.Summary
				require.NoError(t, json.Unmarshal(env.Data, &summary))
				assert.Equal(t, "run-1", summary.RunID)
				assert.Equal(t, agent.TriggerAPI, summary.Trigger)
			}
		})
	}
}

func TestListSlotsEndpoint(t *testing.T) {
	end := now.Add(-time.Hour)
	days := &fakeDays{slots: []timeline.TimeSlot{
		{ID: "a", StartTime: now.Add(-3 * time.Hour), EndTime: &end, Category: timeline.CategoryWork},
		{ID: "b", StartTime: end, Category: timeline.CategoryCommute},
	}}
	r := setup(&fakeRefresher{}, days, &fakeEditor{})

	w, env := do(t, r, http.MethodGet, "/api/v1/timeslots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.True(t, days.requested.Equal(now))

	var data struct {
		Day   string `json:"day"`
		Slots []struct {
			ID              string `json:"id"`
			Category        string `json:"category"`
			DurationSeconds int64  `json:"duration_seconds"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "2025-10-30", data.Day)
	require.Len(t, data.Slots, 2)
	assert.Equal(t, int64(2*3600), data.Slots[0].DurationSeconds)
	assert.Equal(t, int64(3600), data.Slots[1].DurationSeconds)

	w, _ = do(t, r, http.MethodGet, "/api/v1/timeslots?day=2025-10-28", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC), days.requested)

	w, _ = do(t, r, http.MethodGet, "/api/v1/timeslots?day=28.10.2025", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	days.err = errors.New("database down")
	w, _ = do(t, r, http.MethodGet, "/api/v1/timeslots", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUpdateCategoryEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{name: "success", body: `{"category":"friends"}`, wantCode: http.StatusOK},
		{name: "missing category", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "invalid category", body: `{"category":"nap"}`, err: timeline.ErrInvalidCategory, wantCode: http.StatusBadRequest},
		{name: "unknown slot", body: `{"category":"work"}`, err: timeline.ErrSlotNotFound, wantCode: http.StatusNotFound},
		{name: "store failure", body: `{"category":"work"}`, err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor := &fakeEditor{err: tt.err}
			r := setup(&fakeRefresher{}, &fakeDays{}, editor)

			w, env := do(t, r, http.MethodPatch, "/api/v1/timeslots/slot-7/category", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "slot-7", editor.id)
				assert.Equal(t, timeline.CategoryFriends, editor.category)

				var slot timeline.TimeSlot
				require.NoError(t, json.Unmarshal(env.Data, &slot))
				assert.True(t, slot.CategoryWasSetByUser)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	r := setup(&fakeRefresher{}, &fakeDays{}, &fakeEditor{})

	w, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// No database configured, so the detailed check is degraded
	w, _ = do(t, r, http.MethodGet, "/health/detailed", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body health.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connected", body.Services.MQTT)
	assert.Equal(t, "connected", body.Services.Redis)
	assert.Equal(t, "disconnected", body.Services.Database)
}
