package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/teferi-timeline/e2e/internal/scenario"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

func testScenario() *scenario.Scenario {
	count := 2
	return &scenario.Scenario{
		Name:         "commute",
		Description:  "two places",
		Device:       "phone",
		VirtualStart: time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC),
		RunAt:        2 * time.Hour,
		Events: []scenario.RawEvent{
			{At: 0, Kind: scenario.KindLocation, Latitude: 60.17, Longitude: 24.94, Description: "home"},
			{At: 30 * time.Minute, Kind: scenario.KindMotion, Activity: "walk", Duration: 15 * time.Minute, Description: "walk"},
		},
		Expectations: scenario.Expectations{
			SlotCount: &count,
			Slots:     []scenario.SlotExpectation{{Category: "commute"}},
		},
	}
}

func TestEventPayload(t *testing.T) {
	s := testScenario()

	payload, err := EventPayload(s, s.Events[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"timestamp":"2025-10-30T08:00:00Z","latitude":60.17,"longitude":24.94,"horizontal_accuracy":0}}`, string(payload))

	payload, err = EventPayload(s, s.Events[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"type":"walk","start":"2025-10-30T08:30:00Z","end":"2025-10-30T08:45:00Z"}}`, string(payload))

	_, err = EventPayload(s, scenario.RawEvent{Kind: "heartbeat"})
	assert.Error(t, err)
}

func TestRunnerReplaysScenario(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	broker := mqtt.NewMemoryClient()
	require.NoError(t, broker.Connect(context.Background()))

	// Stand-in for the service: every refresh request is answered at once
	require.NoError(t, broker.Subscribe(mqtt.TopicTimelineRefresh, 1, func(msg mqtt.Message) {
		broker.Publish(mqtt.TopicTimelineUpdated, 1, false, []byte(`{"slots":2}`))
	}))

	var requestedDay string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedDay = r.URL.Query().Get("day")
		json.NewEncoder(w).Encode(map[string]any{
			"code":    0,
			"message": "success",
			"data": map[string]any{
				"slots": []map[string]any{
					{"id": "a", "start_time": "2025-10-30T08:30:00Z", "category": "commute", "activity": "walk", "duration_seconds": 900},
					{"id": "b", "start_time": "2025-10-30T08:45:00Z", "category": "unknown", "activity": "still", "duration_seconds": 4500},
				},
			},
		})
	}))
	defer api.Close()

	runner := NewRunner(broker, api.URL, time.Second, logger)
	result, err := runner.Run(context.Background(), testScenario())
	require.NoError(t, err)

	assert.True(t, result.Passed, "failures: %v", result.Failures)
	assert.Len(t, result.Slots, 2)
	assert.Equal(t, "2025-10-30", requestedDay)

	assert.Len(t, broker.Published("teferi/raw/location/phone"), 1)
	assert.Len(t, broker.Published("teferi/raw/motion/phone"), 1)

	// Virtual time is switched on for the run and off again afterwards
	configs := broker.Published(mqtt.TopicTestTimeConfig)
	require.Len(t, configs, 2)
	assert.Contains(t, string(configs[0].Payload), `"virtual_start":"2025-10-30T10:00:00Z"`)
	assert.JSONEq(t, `{"test_mode":false}`, string(configs[1].Payload))
}

func TestRunnerTimesOutWithoutUpdate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	broker := mqtt.NewMemoryClient()
	require.NoError(t, broker.Connect(context.Background()))

	runner := NewRunner(broker, "http://127.0.0.1:0", 50*time.Millisecond, logger)
	_, err := runner.Run(context.Background(), testScenario())
	assert.ErrorContains(t, err, "timed out")
}
