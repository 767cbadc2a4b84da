package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

// Settings stores pipeline bookkeeping in a Redis hash
type Settings struct {
	redis redis.Client
	key   string
}

// NewSettings creates the settings store for one device
func NewSettings(client redis.Client, device string) *Settings {
	return &Settings{
		redis: client,
		key:   redis.SettingsKey(device),
	}
}

// LastKnownLocation returns the location stored by the last run, or nil
func (s *Settings) LastKnownLocation(ctx context.Context) (*timeline.Location, error) {
	raw, err := s.redis.HGet(ctx, s.key, redis.FieldLastKnownLocation)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var location timeline.Location
	if err := json.Unmarshal([]byte(raw), &location); err != nil {
		return nil, fmt.Errorf("failed to decode last known location: %w", err)
	}
	return &location, nil
}

// SetLastKnownLocation stores the reference location for the next run
func (s *Settings) SetLastKnownLocation(ctx context.Context, location timeline.Location) error {
	payload, err := json.Marshal(location)
	if err != nil {
		return fmt.Errorf("failed to encode last known location: %w", err)
	}
	return s.redis.HSet(ctx, s.key, redis.FieldLastKnownLocation, string(payload))
}

// LastGenerationTime returns when the timeline was last generated, or nil
func (s *Settings) LastGenerationTime(ctx context.Context) (*time.Time, error) {
	return s.getTime(ctx, redis.FieldLastGenerationTime)
}

// SetLastGenerationTime records the end of a completed run
func (s *Settings) SetLastGenerationTime(ctx context.Context, t time.Time) error {
	return s.redis.HSet(ctx, s.key, redis.FieldLastGenerationTime, t.UTC().Format(time.RFC3339Nano))
}

// InstallDate returns when the device first reported a location, or nil
func (s *Settings) InstallDate(ctx context.Context) (*time.Time, error) {
	return s.getTime(ctx, redis.FieldInstallDate)
}

// EnsureInstallDate records t as the install date unless one is set already
func (s *Settings) EnsureInstallDate(ctx context.Context, t time.Time) (bool, error) {
	return s.redis.HSetNX(ctx, s.key, redis.FieldInstallDate, t.UTC().Format(time.RFC3339Nano))
}

func (s *Settings) getTime(ctx context.Context, field string) (*time.Time, error) {
	raw, err := s.redis.HGet(ctx, s.key, field)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return &t, nil
}
