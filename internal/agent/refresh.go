// Package agent schedules timeline generation runs and announces their results.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is running
var ErrRefreshInProgress = errors.New("timeline refresh already in progress")

// Runner runs one timeline generation
type Runner interface {
	Run(ctx context.Context) ([]timeline.TimeSlot, error)
}

// Summary describes a finished run. It is published on teferi/timeline/updated.
type Summary struct {
	RunID       string                    `json:"run_id"`
	Trigger     string                    `json:"trigger"`
	GeneratedAt time.Time                 `json:"generated_at"`
	DurationMs  int64                     `json:"duration_ms"`
	Slots       int                       `json:"slots"`
	Categories  map[timeline.Category]int `json:"categories,omitempty"`
	From        *time.Time                `json:"from,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// Trigger sources
const (
	TriggerSchedule = "schedule"
	TriggerMQTT     = "mqtt"
	TriggerAPI      = "api"
	TriggerStartup  = "startup"
)

// RefreshAgent runs the generator on demand and on a fixed schedule. At
// most one run is in flight; overlapping requests are rejected.
type RefreshAgent struct {
	runner   Runner
	mqtt     mqtt.Client
	clock    timeline.Clock
	interval time.Duration
	logger   *slog.Logger

	running           atomic.Bool
	schedulerStopChan chan struct{}

	// lifecycle guards stopped so no run joins wg once Stop is waiting
	lifecycle sync.Mutex
	stopped   bool
	wg        sync.WaitGroup

	mu   sync.RWMutex
	last *Summary
}

// NewRefreshAgent creates an agent. A zero interval disables the scheduler.
func NewRefreshAgent(runner Runner, mqttClient mqtt.Client, clock timeline.Clock, interval time.Duration, logger *slog.Logger) *RefreshAgent {
	return &RefreshAgent{
		runner:            runner,
		mqtt:              mqttClient,
		clock:             clock,
		interval:          interval,
		logger:            logger.With("component", "refresh_agent"),
		schedulerStopChan: make(chan struct{}),
	}
}

// Start subscribes to the refresh trigger topic and starts the scheduler
func (a *RefreshAgent) Start(ctx context.Context) error {
	if err := a.mqtt.Subscribe(mqtt.TopicTimelineRefresh, 1, a.handleRefreshTrigger); err != nil {
		return fmt.Errorf("failed to subscribe to refresh trigger topic: %w", err)
	}
	a.logger.Info("Subscribed to refresh trigger", "topic", mqtt.TopicTimelineRefresh)

	if a.interval <= 0 {
		a.logger.Info("Refresh scheduling disabled, waiting for triggers")
		return nil
	}

	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.stopped {
		return nil
	}
	a.logger.Info("Starting refresh scheduler", "interval", a.interval)
	a.wg.Add(1)
	go a.schedulerLoop(ctx)
	return nil
}

// Stop halts the scheduler and waits for in-flight runs it started
func (a *RefreshAgent) Stop() {
	a.lifecycle.Lock()
	if !a.stopped {
		a.stopped = true
		close(a.schedulerStopChan)
	}
	a.lifecycle.Unlock()

	a.wg.Wait()
	a.logger.Info("Stopped refresh agent")
}

// handleRefreshTrigger handles MQTT refresh requests. The payload is ignored.
func (a *RefreshAgent) handleRefreshTrigger(msg mqtt.Message) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.stopped {
		a.logger.Debug("Ignoring refresh trigger after stop", "topic", msg.Topic())
		return
	}
	a.logger.Info("Received refresh trigger", "topic", msg.Topic())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if _, err := a.Refresh(context.Background(), TriggerMQTT); err != nil {
			a.logger.Error("Triggered refresh failed", "error", err)
		}
	}()
}

func (a *RefreshAgent) schedulerLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.schedulerStopChan:
			return
		case <-ticker.C:
			if _, err := a.Refresh(ctx, TriggerSchedule); err != nil {
				a.logger.Error("Scheduled refresh failed", "error", err)
			}
		}
	}
}

// Refresh runs the generator once and publishes the summary
func (a *RefreshAgent) Refresh(ctx context.Context, trigger string) (Summary, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.logger.Info("Skipping refresh, previous run still active", "trigger", trigger)
		return Summary{}, ErrRefreshInProgress
	}
	defer a.running.Store(false)

	summary := Summary{
		RunID:   uuid.New().String(),
		Trigger: trigger,
	}
	started := time.Now()

	slots, err := a.runner.Run(ctx)

	summary.GeneratedAt = a.clock.Now()
	summary.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		summary.Error = err.Error()
	} else {
		summary.Slots = len(slots)
		if len(slots) > 0 {
			summary.Categories = make(map[timeline.Category]int)
			for _, slot := range slots {
				summary.Categories[slot.Category]++
			}
			from := slots[0].StartTime
			summary.From = &from
		}
	}

	a.mu.Lock()
	a.last = &summary
	a.mu.Unlock()

	a.publish(summary)

	if err != nil {
		return summary, err
	}

	a.logger.Info("Timeline refreshed",
		"run_id", summary.RunID,
		"trigger", trigger,
		"slots", summary.Slots,
		"duration_ms", summary.DurationMs)
	return summary, nil
}

// Running reports whether a run is in flight
func (a *RefreshAgent) Running() bool {
	return a.running.Load()
}

// LastSummary returns the most recent run summary, or nil before the first run
func (a *RefreshAgent) LastSummary() *Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return nil
	}
	s := *a.last
	return &s
}

func (a *RefreshAgent) publish(summary Summary) {
	if !a.mqtt.IsConnected() {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		a.logger.Error("Failed to encode refresh summary", "error", err)
		return
	}
	if err := a.mqtt.Publish(mqtt.TopicTimelineUpdated, 1, false, payload); err != nil {
		a.logger.Warn("Failed to publish refresh summary", "error", err)
	}
}
