package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

// maxSegmentLength bounds how far before a window a segment may start and
// still reach into it
const maxSegmentLength = 24 * time.Hour

// MotionBuffer keeps classified activity segments in a Redis sorted set
// scored by segment start
type MotionBuffer struct {
	redis     redis.Client
	key       string
	retention time.Duration
	logger    *slog.Logger
}

// NewMotionBuffer creates a buffer for one device. Segments older than
// retention are trimmed on write.
func NewMotionBuffer(client redis.Client, device string, retention time.Duration, logger *slog.Logger) *MotionBuffer {
	return &MotionBuffer{
		redis:     client,
		key:       redis.MotionEventsKey(device),
		retention: retention,
		logger:    logger.With("component", "motion_buffer"),
	}
}

// Add stores a segment. A segment with the same start replaces the earlier
// one, so a device can extend the segment that is still running.
func (b *MotionBuffer) Add(ctx context.Context, event timeline.MotionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal motion event: %w", err)
	}

	score := strconv.FormatInt(event.Start.UnixMilli(), 10)
	if err := b.redis.ZRemRangeByScore(ctx, b.key, score, score); err != nil {
		return fmt.Errorf("failed to replace motion event: %w", err)
	}
	if err := b.redis.ZAdd(ctx, b.key, float64(event.Start.UnixMilli()), string(payload)); err != nil {
		return fmt.Errorf("failed to buffer motion event: %w", err)
	}

	if b.retention > 0 {
		cutoff := strconv.FormatInt(event.End.Add(-b.retention).UnixMilli(), 10)
		if err := b.redis.ZRemRangeByScore(ctx, b.key, "-inf", "("+cutoff); err != nil {
			b.logger.Warn("Failed to trim old motion events", "error", err)
		}
		if err := b.redis.Expire(ctx, b.key, b.retention); err != nil {
			b.logger.Warn("Failed to set TTL on motion buffer", "error", err)
		}
	}
	return nil
}

// Activities returns segments intersecting [since, until], ordered by start
func (b *MotionBuffer) Activities(ctx context.Context, since, until time.Time) ([]timeline.MotionEvent, error) {
	min := strconv.FormatInt(since.Add(-maxSegmentLength).UnixMilli(), 10)
	max := strconv.FormatInt(until.UnixMilli(), 10)

	members, err := b.redis.ZRangeByScoreWithScores(ctx, b.key, min, max)
	if err != nil {
		return nil, fmt.Errorf("failed to read motion events: %w", err)
	}

	events := make([]timeline.MotionEvent, 0, len(members))
	for _, member := range members {
		var event timeline.MotionEvent
		if err := json.Unmarshal([]byte(member.Member), &event); err != nil {
			b.logger.Warn("Skipping undecodable motion event", "error", err)
			continue
		}
		if !event.End.After(since) {
			continue
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}
