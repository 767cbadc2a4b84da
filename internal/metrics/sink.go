// Package metrics publishes pipeline analytics events over MQTT.
package metrics

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

// MQTTSink implements timeline.MetricsSink. Events are fire-and-forget:
// delivery failures are logged by the client and never reach the pipeline.
type MQTTSink struct {
	mqtt   mqtt.Client
	device string
	logger *slog.Logger

	published atomic.Int64
	dropped   atomic.Int64
}

// NewMQTTSink creates a sink tagging every event with device
func NewMQTTSink(client mqtt.Client, device string, logger *slog.Logger) *MQTTSink {
	return &MQTTSink{
		mqtt:   client,
		device: device,
		logger: logger.With("component", "metrics"),
	}
}

type payload struct {
	timeline.MetricEvent
	Device string `json:"device"`
}

// Log publishes event on teferi/metrics/<name>
func (s *MQTTSink) Log(event timeline.MetricEvent) {
	if !s.mqtt.IsConnected() {
		s.dropped.Add(1)
		s.logger.Debug("MQTT disconnected, dropping metric", "name", event.Name)
		return
	}

	data, err := json.Marshal(payload{MetricEvent: event, Device: s.device})
	if err != nil {
		s.dropped.Add(1)
		s.logger.Warn("Failed to encode metric", "name", event.Name, "error", err)
		return
	}

	s.mqtt.PublishAsync(mqtt.MetricsTopic(event.Name), 0, data)
	s.published.Add(1)
}

// Counts returns how many events were handed to MQTT and how many were dropped
func (s *MQTTSink) Counts() (published, dropped int64) {
	return s.published.Load(), s.dropped.Load()
}
