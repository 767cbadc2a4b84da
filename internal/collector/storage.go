package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/storage"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

// Storage routes parsed messages into the per-device Redis buffers
type Storage struct {
	redis     redis.Client
	retention time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	installed map[string]bool
}

// NewStorage creates a new storage handler. Motion segments older than
// retention are trimmed as new ones arrive.
func NewStorage(redisClient redis.Client, retention time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		redis:     redisClient,
		retention: retention,
		logger:    logger,
		installed: make(map[string]bool),
	}
}

// StoreEvent stores a raw message in the buffer matching its kind
func (s *Storage) StoreEvent(ctx context.Context, msg *RawMessage, processor *Processor) error {
	switch msg.Kind {
	case KindLocation:
		return s.storeLocation(ctx, msg, processor)
	case KindMotion:
		return s.storeMotion(ctx, msg, processor)
	default:
		return fmt.Errorf("unsupported event kind: %s", msg.Kind)
	}
}

func (s *Storage) storeLocation(ctx context.Context, msg *RawMessage, processor *Processor) error {
	location, err := processor.BuildLocation(msg)
	if err != nil {
		return fmt.Errorf("invalid location: %w", err)
	}

	buffer := storage.NewLocationBuffer(s.redis, msg.Device, s.logger)
	if err := buffer.Add(ctx, location); err != nil {
		return err
	}

	s.ensureInstallDate(ctx, msg.Device, location.Timestamp)

	s.logger.Debug("Stored location",
		"device", msg.Device,
		"timestamp", location.Timestamp.Format(time.RFC3339))
	return nil
}

func (s *Storage) storeMotion(ctx context.Context, msg *RawMessage, processor *Processor) error {
	event, err := processor.BuildMotionEvent(msg)
	if err != nil {
		return fmt.Errorf("invalid motion event: %w", err)
	}

	buffer := storage.NewMotionBuffer(s.redis, msg.Device, s.retention, s.logger)
	if err := buffer.Add(ctx, event); err != nil {
		return err
	}

	s.logger.Debug("Stored motion event",
		"device", msg.Device,
		"type", event.Type,
		"duration", event.Duration())
	return nil
}

// ensureInstallDate records the first sample a device ever sent
func (s *Storage) ensureInstallDate(ctx context.Context, device string, at time.Time) {
	s.mu.Lock()
	done := s.installed[device]
	s.mu.Unlock()
	if done {
		return
	}

	set, err := storage.NewSettings(s.redis, device).EnsureInstallDate(ctx, at)
	if err != nil {
		s.logger.Warn("Failed to record install date", "device", device, "error", err)
		return
	}
	if set {
		s.logger.Info("Recorded install date", "device", device, "install_date", at.Format(time.RFC3339))
	}

	s.mu.Lock()
	s.installed[device] = true
	s.mu.Unlock()
}
