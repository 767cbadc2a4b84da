package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

// LocationBuffer keeps raw location events in a Redis sorted set scored by
// timestamp until the pipeline consumes them
type LocationBuffer struct {
	redis  redis.Client
	key    string
	logger *slog.Logger
}

// NewLocationBuffer creates a buffer for one device
func NewLocationBuffer(client redis.Client, device string, logger *slog.Logger) *LocationBuffer {
	return &LocationBuffer{
		redis:  client,
		key:    redis.LocationEventsKey(device),
		logger: logger.With("component", "location_buffer"),
	}
}

// Add buffers a location as a NewLocation track event
func (b *LocationBuffer) Add(ctx context.Context, location timeline.Location) error {
	payload, err := json.Marshal(timeline.NewLocationEvent(location))
	if err != nil {
		return fmt.Errorf("failed to marshal location event: %w", err)
	}
	if err := b.redis.ZAdd(ctx, b.key, float64(location.Timestamp.UnixMilli()), string(payload)); err != nil {
		return fmt.Errorf("failed to buffer location: %w", err)
	}
	return nil
}

// AllPendingLocations returns every buffered location, oldest first
func (b *LocationBuffer) AllPendingLocations(ctx context.Context) ([]timeline.Location, error) {
	members, err := b.redis.ZRangeByScoreWithScores(ctx, b.key, "-inf", "+inf")
	if err != nil {
		return nil, fmt.Errorf("failed to read pending locations: %w", err)
	}

	locations := make([]timeline.Location, 0, len(members))
	for _, member := range members {
		var event timeline.TrackEvent
		if err := json.Unmarshal([]byte(member.Member), &event); err != nil {
			b.logger.Warn("Skipping undecodable track event", "error", err)
			continue
		}
		location, ok := event.AsLocation()
		if !ok {
			continue
		}
		locations = append(locations, location)
	}
	return locations, nil
}

// Clear removes buffered locations up to and including through
func (b *LocationBuffer) Clear(ctx context.Context, through time.Time) error {
	max := strconv.FormatInt(through.UnixMilli(), 10)
	if err := b.redis.ZRemRangeByScore(ctx, b.key, "-inf", max); err != nil {
		return fmt.Errorf("failed to clear consumed locations: %w", err)
	}
	return nil
}

// Pending returns the number of buffered locations
func (b *LocationBuffer) Pending(ctx context.Context) (int64, error) {
	return b.redis.ZCard(ctx, b.key)
}
