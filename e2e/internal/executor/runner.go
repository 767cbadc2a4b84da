package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/teferi-timeline/e2e/internal/checker"
	"github.com/saaga0h/teferi-timeline/e2e/internal/scenario"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

// settleDelay gives the service time to apply what was just published
const settleDelay = 500 * time.Millisecond

// Runner orchestrates scenario execution against a running service
type Runner struct {
	mqtt    mqtt.Client
	apiURL  string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner. The MQTT client must be connected.
func NewRunner(mqttClient mqtt.Client, apiURL string, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		mqtt:    mqttClient,
		apiURL:  apiURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		timeout: timeout,
		logger:  logger,
	}
}

// Run replays a scenario and checks the resulting timeline
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "description", s.Description)

	result := &scenario.TestResult{
		Scenario:  s.Name,
		StartTime: time.Now(),
	}

	updated := make(chan struct{}, 1)
	if err := r.mqtt.Subscribe(mqtt.TopicTimelineUpdated, 1, func(msg mqtt.Message) {
		select {
		case updated <- struct{}{}:
		default:
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicTimelineUpdated, err)
	}

	player := NewMQTTPlayer(r.mqtt, r.logger)
	if err := player.PublishTimeConfig(s.Now()); err != nil {
		return nil, fmt.Errorf("failed to publish time config: %w", err)
	}
	defer func() {
		if err := player.PublishTimeConfig(time.Time{}); err != nil {
			r.logger.Warn("Failed to reset time config", "error", err)
		}
	}()

	for _, event := range s.Events {
		if err := player.PublishEvent(s, event); err != nil {
			return nil, fmt.Errorf("failed to publish event: %w", err)
		}
	}
	r.logger.Info("Published events", "count", len(s.Events))

	time.Sleep(settleDelay)

	if err := player.TriggerRefresh(); err != nil {
		return nil, fmt.Errorf("failed to trigger refresh: %w", err)
	}

	select {
	case <-updated:
	case <-time.After(r.timeout):
		return nil, fmt.Errorf("timed out after %s waiting for %s", r.timeout, mqtt.TopicTimelineUpdated)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	day := s.Day
	if day == "" {
		day = s.Now().Format("2006-01-02")
	}

	slots, err := r.fetchSlots(ctx, day)
	if err != nil {
		return nil, err
	}

	result.Slots = slots
	result.Failures = checker.CheckSlots(s.Expectations, slots)
	result.Passed = len(result.Failures) == 0
	result.EndTime = time.Now()

	r.logger.Info("Scenario finished",
		"name", s.Name,
		"passed", result.Passed,
		"slots", len(slots),
		"failures", len(result.Failures))
	return result, nil
}

func (r *Runner) fetchSlots(ctx context.Context, day string) ([]scenario.ObservedSlot, error) {
	url := fmt.Sprintf("%s/api/v1/timeslots?day=%s", r.apiURL, day)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slot query returned %s", resp.Status)
	}

	var body struct {
		Data struct {
			Slots []scenario.ObservedSlot `json:"slots"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return body.Data.Slots, nil
}
