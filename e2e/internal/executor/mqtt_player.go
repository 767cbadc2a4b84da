package executor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/teferi-timeline/e2e/internal/scenario"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

// MQTTPlayer publishes scenario events the way a device would
type MQTTPlayer struct {
	client mqtt.Client
	logger *slog.Logger
}

// NewMQTTPlayer creates a player over a connected client
func NewMQTTPlayer(client mqtt.Client, logger *slog.Logger) *MQTTPlayer {
	return &MQTTPlayer{client: client, logger: logger}
}

// EventPayload builds the raw message body for an event
func EventPayload(s *scenario.Scenario, event scenario.RawEvent) ([]byte, error) {
	ts := event.Timestamp(s).UTC()

	var data map[string]interface{}
	switch event.Kind {
	case scenario.KindLocation:
		data = map[string]interface{}{
			"timestamp":           ts.Format(time.RFC3339Nano),
			"latitude":            event.Latitude,
			"longitude":           event.Longitude,
			"horizontal_accuracy": event.Accuracy,
		}
	case scenario.KindMotion:
		data = map[string]interface{}{
			"type":  event.Activity,
			"start": ts.Format(time.RFC3339Nano),
			"end":   ts.Add(event.Duration).Format(time.RFC3339Nano),
		}
	default:
		return nil, fmt.Errorf("unknown event kind %q", event.Kind)
	}

	return json.Marshal(map[string]interface{}{"data": data})
}

// PublishEvent publishes one raw event
func (p *MQTTPlayer) PublishEvent(s *scenario.Scenario, event scenario.RawEvent) error {
	payload, err := EventPayload(s, event)
	if err != nil {
		return err
	}

	topic := mqtt.RawEventTopic(event.Kind, s.Device)
	if err := p.client.Publish(topic, 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("Published event", "topic", topic, "description", event.Description)
	return nil
}

// PublishTimeConfig switches the service clock to virtual time starting at
// now, or back to wall-clock time when now is zero
func (p *MQTTPlayer) PublishTimeConfig(now time.Time) error {
	config := map[string]interface{}{"test_mode": false}
	if !now.IsZero() {
		config = map[string]interface{}{
			"test_mode":     true,
			"virtual_start": now.UTC().Format(time.RFC3339),
			"time_scale":    1,
		}
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return p.client.Publish(mqtt.TopicTestTimeConfig, 1, false, payload)
}

// TriggerRefresh asks the service to run the pipeline
func (p *MQTTPlayer) TriggerRefresh() error {
	return p.client.Publish(mqtt.TopicTimelineRefresh, 1, false, []byte(`{}`))
}
