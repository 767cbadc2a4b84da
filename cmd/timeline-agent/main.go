package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saaga0h/teferi-timeline/internal/agent"
	"github.com/saaga0h/teferi-timeline/internal/api"
	"github.com/saaga0h/teferi-timeline/internal/collector"
	"github.com/saaga0h/teferi-timeline/internal/metrics"
	"github.com/saaga0h/teferi-timeline/internal/storage"
	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/config"
	"github.com/saaga0h/teferi-timeline/pkg/health"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
	"github.com/saaga0h/teferi-timeline/pkg/postgres"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
	"github.com/saaga0h/teferi-timeline/pkg/sqlite"
)

func main() {
	cfg := config.NewConfig()
	if path := os.Getenv("TEFERI_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting timeline agent",
		"device", cfg.DeviceID,
		"mqtt", cfg.MQTTAddress(),
		"redis", cfg.RedisAddress(),
		"storage", cfg.StorageBackend,
		"time_zone", cfg.Timeline.TimeZone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize clients
	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT", "error", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	redisClient := redis.NewClient(cfg, logger)
	if err := redisClient.Ping(ctx); err != nil {
		logger.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	dialect, err := storage.ParseDialect(cfg.StorageBackend)
	if err != nil {
		logger.Error("Invalid storage backend", "error", err)
		os.Exit(1)
	}

	db, closeDB, err := openDatabase(ctx, cfg, dialect, logger)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	timeManager := timeline.NewTimeManager(logger)
	if err := timeManager.ConfigureFromMQTT(mqttClient); err != nil {
		// Not fatal - continue without test mode support
		logger.Warn("Failed to subscribe to test mode config", "error", err)
	}

	tz := cfg.Location()
	slots := storage.NewTimeSlotStore(db, dialect, tz)
	guesses := storage.NewSmartGuessStore(db, dialect)

	generator := timeline.NewGenerator(timeline.Dependencies{
		Motion:    storage.NewMotionBuffer(redisClient, cfg.DeviceID, motionRetention(cfg), logger),
		Locations: storage.NewLocationBuffer(redisClient, cfg.DeviceID, logger),
		Slots:     slots,
		Guesses:   guesses,
		Settings:  storage.NewSettings(redisClient, cfg.DeviceID),
		Metrics:   metrics.NewMQTTSink(mqttClient, cfg.DeviceID, logger),
		Clock:     timeManager,
	}, timelineOptions(cfg), logger)

	refresher := agent.NewRefreshAgent(generator, mqttClient, timeManager, cfg.RefreshInterval(), logger)

	if cfg.RunOnce {
		summary, err := refresher.Refresh(ctx, agent.TriggerStartup)
		if err != nil {
			logger.Error("Timeline run failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Timeline run complete", "slots", summary.Slots, "duration_ms", summary.DurationMs)
		return
	}

	collectorAgent := collector.NewAgent(mqttClient, redisClient, timeManager, cfg, logger)
	editor := timeline.NewEditor(slots, guesses, timeManager, logger)
	checker := health.NewChecker(mqttClient, redisClient, db, logger)

	if cfg.SlogLevel() != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.NewTimelineHandler(refresher, slots, editor, timeManager, tz, logger), checker)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	agentErr := make(chan error, 2)
	go func() {
		if err := collectorAgent.Start(ctx); err != nil {
			agentErr <- fmt.Errorf("collector: %w", err)
		}
	}()

	if err := refresher.Start(ctx); err != nil {
		logger.Error("Failed to start refresh agent", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("HTTP API listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			agentErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for shutdown
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}

	refresher.Stop()
	logger.Info("Timeline agent stopped")
}

// openDatabase connects the slot and guess store backend and migrates it
func openDatabase(ctx context.Context, cfg *config.Config, dialect storage.Dialect, logger *slog.Logger) (*sql.DB, func(), error) {
	switch dialect {
	case storage.Postgres:
		pgClient := postgres.NewClient(cfg, logger)
		if err := pgClient.Connect(ctx); err != nil {
			return nil, nil, err
		}
		closeDB := func() { pgClient.Disconnect() }
		if err := pgClient.EnsureExtensions(ctx); err != nil {
			closeDB()
			return nil, nil, err
		}
		if err := storage.Migrate(ctx, pgClient.DB(), dialect, logger); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		status, err := pgClient.HealthCheck(ctx)
		if err != nil || !status.Ready() {
			closeDB()
			if err == nil {
				err = fmt.Errorf("%s (tables: %v)", status.Error, status.Tables)
			}
			return nil, nil, fmt.Errorf("postgres not ready: %w", err)
		}
		logger.Info("Postgres ready",
			"database", status.Database,
			"version", status.ServerVersion,
			"pgvector", status.VectorVersion)
		return pgClient.DB(), closeDB, nil

	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx, db, dialect, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return db, func() { db.Close() }, nil
	}
}

func timelineOptions(cfg *config.Config) timeline.Options {
	opts := timeline.DefaultOptions()
	opts.Annotator.SignificantDistance = cfg.Timeline.SignificantDistanceMeters
	opts.Annotator.DefaultLookback = time.Duration(cfg.Timeline.DefaultLookbackDays) * 24 * time.Hour
	opts.SmartGuess.Radius = cfg.Timeline.SmartGuessRadiusMeters
	opts.SmartGuess.K = cfg.Timeline.SmartGuessK
	opts.SmartGuess.Lookback = time.Duration(cfg.Timeline.SmartGuessLookbackDays) * 24 * time.Hour
	opts.TimeZone = cfg.Location()
	return opts
}

func motionRetention(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Timeline.MotionRetentionHours) * time.Hour
}
