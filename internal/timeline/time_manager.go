package timeline

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

// TimeManager is the pipeline clock. It follows the wall clock unless a
// scenario switches it to virtual time over MQTT.
type TimeManager struct {
	mu           sync.RWMutex
	testMode     bool
	virtualStart time.Time
	realStart    time.Time
	timeScale    int
	logger       *slog.Logger
}

// NewTimeManager creates a time manager running on wall-clock time
func NewTimeManager(logger *slog.Logger) *TimeManager {
	return &TimeManager{
		realStart: time.Now(),
		timeScale: 1,
		logger:    logger,
	}
}

// ConfigureFromMQTT subscribes to virtual time configuration
func (tm *TimeManager) ConfigureFromMQTT(mqttClient mqtt.Client) error {
	return mqttClient.Subscribe(mqtt.TopicTestTimeConfig, 1, func(msg mqtt.Message) {
		tm.handleTimeConfig(msg.Payload())
	})
}

func (tm *TimeManager) handleTimeConfig(payload []byte) {
	var cfg struct {
		VirtualStart string `json:"virtual_start"`
		TimeScale    int    `json:"time_scale"`
		TestMode     bool   `json:"test_mode"`
	}

	if err := json.Unmarshal(payload, &cfg); err != nil {
		tm.logger.Error("Failed to parse time config", "error", err)
		return
	}

	if !cfg.TestMode {
		tm.logger.Info("Virtual time disabled")
		tm.mu.Lock()
		tm.testMode = false
		tm.mu.Unlock()
		return
	}

	virtualStart, err := time.Parse(time.RFC3339, cfg.VirtualStart)
	if err != nil {
		tm.logger.Error("Invalid virtual_start time", "error", err)
		return
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}

	tm.mu.Lock()
	tm.testMode = true
	tm.virtualStart = virtualStart
	tm.realStart = time.Now()
	tm.timeScale = cfg.TimeScale
	tm.mu.Unlock()

	tm.logger.Info("Virtual time configured",
		"virtual_start", cfg.VirtualStart,
		"time_scale", cfg.TimeScale)
}

// Now returns the current time (real or virtual)
func (tm *TimeManager) Now() time.Time {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if !tm.testMode {
		return time.Now()
	}

	realElapsed := time.Since(tm.realStart)
	return tm.virtualStart.Add(realElapsed * time.Duration(tm.timeScale))
}

// IsTestMode returns whether virtual time is active
func (tm *TimeManager) IsTestMode() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.testMode
}
