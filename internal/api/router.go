package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saaga0h/teferi-timeline/pkg/health"
)

// SetupRouter wires the timeline and health endpoints
func SetupRouter(timelines *TimelineHandler, checker *health.Checker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", checker.Handler)
	r.GET("/health/detailed", checker.DetailedHandler)

	api := r.Group("/api/v1")
	{
		api.POST("/timeline/refresh", timelines.Refresh)

		slots := api.Group("/timeslots")
		{
			slots.GET("", timelines.ListSlots)
			slots.PATCH("/:id/category", timelines.UpdateCategory)
		}
	}

	return r
}
