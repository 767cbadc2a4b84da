package redis

import "fmt"

// Key construction helpers. All keys are scoped by device so several
// devices can share one Redis instance.

// LocationEventsKey returns the key for pending raw location events (sorted set)
// Pattern: events:location:{device}
// Score: event timestamp in unix milliseconds
func LocationEventsKey(device string) string {
	return fmt.Sprintf("events:location:%s", device)
}

// MotionEventsKey returns the key for buffered motion activity (sorted set)
// Pattern: events:motion:{device}
// Score: activity start in unix milliseconds
func MotionEventsKey(device string) string {
	return fmt.Sprintf("events:motion:%s", device)
}

// SettingsKey returns the key for pipeline settings (hash)
// Pattern: settings:timeline:{device}
func SettingsKey(device string) string {
	return fmt.Sprintf("settings:timeline:%s", device)
}

// Settings hash fields
const (
	FieldLastKnownLocation  = "last_known_location"
	FieldLastGenerationTime = "last_generation_time"
	FieldInstallDate        = "install_date"
)
