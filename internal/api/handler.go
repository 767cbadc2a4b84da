package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saaga0h/teferi-timeline/internal/agent"
	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/response"
)

const dayLayout = "2006-01-02"

// Refresher triggers a timeline generation
type Refresher interface {
	Refresh(ctx context.Context, trigger string) (agent.Summary, error)
}

// DayReader lists the slots of one calendar day
type DayReader interface {
	SlotsForDay(ctx context.Context, day time.Time) ([]timeline.TimeSlot, error)
}

// Recategorizer applies user category corrections
type Recategorizer interface {
	Recategorize(ctx context.Context, id string, category timeline.Category) (timeline.TimeSlot, error)
}

// TimelineHandler handles HTTP requests for the timeline
type TimelineHandler struct {
	refresher Refresher
	slots     DayReader
	editor    Recategorizer
	clock     timeline.Clock
	tz        *time.Location
	logger    *slog.Logger
}

// NewTimelineHandler creates a new timeline handler
func NewTimelineHandler(refresher Refresher, slots DayReader, editor Recategorizer, clock timeline.Clock, tz *time.Location, logger *slog.Logger) *TimelineHandler {
	if tz == nil {
		tz = time.Local
	}
	return &TimelineHandler{
		refresher: refresher,
		slots:     slots,
		editor:    editor,
		clock:     clock,
		tz:        tz,
		logger:    logger.With("component", "api"),
	}
}

// SlotView is a time slot with its duration resolved against now
type SlotView struct {
	timeline.TimeSlot
	DurationSeconds int64 `json:"duration_seconds"`
}

// ListSlotsQuery represents the query parameters for listing slots
type ListSlotsQuery struct {
	Day string `form:"day"`
}

// UpdateCategoryRequest represents the request body for recategorizing a slot
type UpdateCategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// Refresh runs the pipeline now
// POST /api/v1/timeline/refresh
func (h *TimelineHandler) Refresh(c *gin.Context) {
	summary, err := h.refresher.Refresh(c.Request.Context(), agent.TriggerAPI)
	if errors.Is(err, agent.ErrRefreshInProgress) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Refresh failed", "error", err)
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, summary)
}

// ListSlots returns the slots of a day, today by default
// GET /api/v1/timeslots?day=YYYY-MM-DD
func (h *TimelineHandler) ListSlots(c *gin.Context) {
	var query ListSlotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	now := h.clock.Now()
	day := now.In(h.tz)
	if query.Day != "" {
		parsed, err := time.ParseInLocation(dayLayout, query.Day, h.tz)
		if err != nil {
			response.BadRequest(c, "day must be formatted as YYYY-MM-DD")
			return
		}
		day = parsed
	}

	slots, err := h.slots.SlotsForDay(c.Request.Context(), day)
	if err != nil {
		h.logger.Error("Failed to list slots", "day", day.Format(dayLayout), "error", err)
		response.InternalError(c, "Failed to load time slots")
		return
	}

	views := make([]SlotView, len(slots))
	for i, slot := range slots {
		views[i] = SlotView{
			TimeSlot:        slot,
			DurationSeconds: int64(slot.Duration(now, h.tz) / time.Second),
		}
	}

	response.Success(c, gin.H{
		"day":   day.Format(dayLayout),
		"slots": views,
	})
}

// UpdateCategory sets a slot's category on behalf of the user
// PATCH /api/v1/timeslots/:id/category
func (h *TimelineHandler) UpdateCategory(c *gin.Context) {
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	slot, err := h.editor.Recategorize(c.Request.Context(), c.Param("id"), timeline.Category(req.Category))
	switch {
	case errors.Is(err, timeline.ErrInvalidCategory):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, timeline.ErrSlotNotFound):
		response.NotFound(c, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to recategorize slot", "slot_id", c.Param("id"), "error", err)
		response.InternalError(c, "Failed to update time slot")
		return
	}

	response.Success(c, slot)
}
