package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants for the timeline service
const (
	// Raw event topics (input), one segment per device
	TopicRawLocation = "teferi/raw/location/+"
	TopicRawMotion   = "teferi/raw/motion/+"

	// Pipeline control
	TopicTimelineRefresh = "teferi/timeline/refresh"
	TopicTimelineUpdated = "teferi/timeline/updated"

	// Virtual clock configuration for scenario testing
	TopicTestTimeConfig = "teferi/test/time_config"

	TopicMetricsBase = "teferi/metrics"
)

// RawEventTopic constructs a raw event topic for a specific event kind and device
// Pattern: teferi/raw/{kind}/{device}
func RawEventTopic(kind, device string) string {
	return fmt.Sprintf("teferi/raw/%s/%s", kind, device)
}

// MetricsTopic constructs the topic a metrics event is published on
// Pattern: teferi/metrics/{name}
func MetricsTopic(name string) string {
	return fmt.Sprintf("%s/%s", TopicMetricsBase, name)
}

// ParseRawEventTopic extracts the event kind and device from a raw topic
// teferi/raw/{kind}/{device} -> kind, device
func ParseRawEventTopic(topic string) (kind, device string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "teferi" || parts[1] != "raw" {
		return "", "", fmt.Errorf("invalid raw event topic format: %s", topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("invalid raw event topic format: %s", topic)
	}
	return parts[2], parts[3], nil
}
