package collector

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/config"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

// Agent receives raw device events over MQTT and buffers them in Redis
type Agent struct {
	mqtt      mqtt.Client
	processor *Processor
	storage   *Storage
	cfg       *config.Config
	logger    *slog.Logger

	stored   atomic.Int64
	rejected atomic.Int64
}

// NewAgent creates a new collector agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, clock timeline.Clock, cfg *config.Config, logger *slog.Logger) *Agent {
	logger = logger.With("component", "collector")
	retention := time.Duration(cfg.Timeline.MotionRetentionHours) * time.Hour

	return &Agent{
		mqtt:      mqttClient,
		processor: NewProcessor(clock, logger),
		storage:   NewStorage(redisClient, retention, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Subscribe registers the raw event handlers. The MQTT client must be connected.
func (a *Agent) Subscribe() error {
	for _, topic := range []string{mqtt.TopicRawLocation, mqtt.TopicRawMotion} {
		if err := a.mqtt.Subscribe(topic, 1, a.handleMessage); err != nil {
			return err
		}
	}
	return nil
}

// Start subscribes and blocks until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	if err := a.Subscribe(); err != nil {
		return err
	}

	a.logger.Info("Collector started",
		"topics", []string{mqtt.TopicRawLocation, mqtt.TopicRawMotion})

	<-ctx.Done()
	a.logger.Info("Collector stopping",
		"stored", a.stored.Load(),
		"rejected", a.rejected.Load())
	return nil
}

// Stats returns how many messages were stored and rejected so far
func (a *Agent) Stats() (stored, rejected int64) {
	return a.stored.Load(), a.rejected.Load()
}

// handleMessage processes incoming MQTT messages
func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	rawMsg, err := a.processor.ParseMessage(topic, payload)
	if err != nil {
		a.rejected.Add(1)
		a.logger.Error("Failed to parse message", "topic", topic, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.storage.StoreEvent(ctx, rawMsg, a.processor); err != nil {
		a.rejected.Add(1)
		a.logger.Error("Failed to store event",
			"kind", rawMsg.Kind,
			"device", rawMsg.Device,
			"error", err)
		return
	}

	a.stored.Add(1)
	a.logger.Debug("Event stored", "kind", rawMsg.Kind, "device", rawMsg.Device)
}
