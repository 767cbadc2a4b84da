package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
	"github.com/saaga0h/teferi-timeline/pkg/redis"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker provides health check functionality for the service
type Checker struct {
	mqtt   mqtt.Client
	redis  redis.Client
	db     Pinger
	logger *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies.
// Any dependency may be nil and is then reported as disconnected.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, db Pinger, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:   mqttClient,
		redis:  redisClient,
		db:     db,
		logger: logger.With("component", "health"),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Database string `json:"database"`
}

// Handler answers liveness probes without touching dependencies
func (h *Checker) Handler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// DetailedHandler pings every dependency and reports 503 if any is down
func (h *Checker) DetailedHandler(c *gin.Context) {
	services := h.Check(c.Request.Context())

	status := "healthy"
	statusCode := http.StatusOK
	if services.Redis != "connected" || services.MQTT != "connected" || services.Database != "connected" {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Services:  services,
	})
}

// Check probes every dependency
func (h *Checker) Check(ctx context.Context) *Services {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	services := &Services{
		Redis:    "disconnected",
		MQTT:     "disconnected",
		Database: "disconnected",
	}

	if h.mqtt != nil && h.mqtt.IsConnected() {
		services.MQTT = "connected"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
		} else {
			services.Redis = "connected"
		}
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("Database health check failed", "error", err)
		} else {
			services.Database = "connected"
		}
	}

	return services
}
