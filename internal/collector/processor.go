package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

// Event kinds carried in the raw topic
const (
	KindLocation = "location"
	KindMotion   = "motion"
)

// Processor handles parsing and validation of raw device messages
type Processor struct {
	clock  timeline.Clock
	logger *slog.Logger
}

// NewProcessor creates a new message processor. The clock stamps messages
// that carry no timestamp of their own.
func NewProcessor(clock timeline.Clock, logger *slog.Logger) *Processor {
	return &Processor{
		clock:  clock,
		logger: logger,
	}
}

// RawMessage represents a parsed device message with metadata
type RawMessage struct {
	Kind          string
	Device        string
	OriginalTopic string
	Data          map[string]interface{}
	CollectedAt   time.Time
}

// ParseMessage parses an MQTT message into a raw message
// Topic pattern: teferi/raw/{kind}/{device}
func (p *Processor) ParseMessage(topic string, payload []byte) (*RawMessage, error) {
	kind, device, err := mqtt.ParseRawEventTopic(topic)
	if err != nil {
		p.logger.Warn("Invalid topic format", "topic", topic)
		return nil, err
	}

	var rawData map[string]interface{}
	if err := json.Unmarshal(payload, &rawData); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	// Messages are usually wrapped in {"data": {...}}
	data, ok := rawData["data"].(map[string]interface{})
	if !ok {
		data = rawData
	}

	msg := &RawMessage{
		Kind:          kind,
		Device:        device,
		OriginalTopic: topic,
		Data:          data,
		CollectedAt:   p.clock.Now(),
	}

	p.logger.Debug("Parsed raw message", "kind", kind, "device", device)
	return msg, nil
}

// BuildLocation converts a raw message into a validated location sample
func (p *Processor) BuildLocation(msg *RawMessage) (timeline.Location, error) {
	lat, ok := number(msg.Data, "latitude")
	if !ok {
		return timeline.Location{}, fmt.Errorf("location without latitude")
	}
	lon, ok := number(msg.Data, "longitude")
	if !ok {
		return timeline.Location{}, fmt.Errorf("location without longitude")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return timeline.Location{}, fmt.Errorf("coordinates out of range: %f,%f", lat, lon)
	}

	ts, err := timestamp(msg.Data, "timestamp", msg.CollectedAt)
	if err != nil {
		return timeline.Location{}, err
	}

	location := timeline.Location{
		Timestamp: ts,
		Latitude:  lat,
		Longitude: lon,
	}
	location.Altitude, _ = number(msg.Data, "altitude")
	location.HorizontalAccuracy, _ = number(msg.Data, "horizontal_accuracy")
	location.VerticalAccuracy, _ = number(msg.Data, "vertical_accuracy")
	location.Speed, _ = number(msg.Data, "speed")
	location.Course, _ = number(msg.Data, "course")

	if location.HorizontalAccuracy < 0 {
		return timeline.Location{}, fmt.Errorf("negative horizontal accuracy: %f", location.HorizontalAccuracy)
	}
	return location, nil
}

// BuildMotionEvent converts a raw message into a validated activity segment
func (p *Processor) BuildMotionEvent(msg *RawMessage) (timeline.MotionEvent, error) {
	kind, _ := msg.Data["type"].(string)
	eventType := timeline.MotionEventType(kind)
	if !eventType.Valid() {
		return timeline.MotionEvent{}, fmt.Errorf("unknown activity type: %q", kind)
	}

	start, err := timestamp(msg.Data, "start", time.Time{})
	if err != nil {
		return timeline.MotionEvent{}, err
	}
	if start.IsZero() {
		return timeline.MotionEvent{}, fmt.Errorf("activity without start")
	}

	end, err := timestamp(msg.Data, "end", msg.CollectedAt)
	if err != nil {
		return timeline.MotionEvent{}, err
	}
	if end.Before(start) {
		return timeline.MotionEvent{}, fmt.Errorf("activity ends before it starts: %s < %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	return timeline.MotionEvent{Start: start, End: end, Type: eventType}, nil
}

func number(data map[string]interface{}, field string) (float64, bool) {
	v, ok := data[field].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// timestamp reads an RFC 3339 string or unix milliseconds, returning fallback
// when the field is absent
func timestamp(data map[string]interface{}, field string, fallback time.Time) (time.Time, error) {
	switch v := data[field].(type) {
	case nil:
		return fallback, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s: %w", field, err)
		}
		return t.UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("invalid %s: unsupported type %T", field, v)
	}
}
