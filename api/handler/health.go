package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/bughunter/models"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than 80% of scan slots are busy.
func Health(sc Scanner, an Analyzer, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, maxScans := sc.Active(), sc.Max()

		status := "healthy"
		if maxScans > 0 && active > int(float64(maxScans)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActiveScans: active,
			MaxScans:    maxScans,
			AIEnabled:   an.Enabled(),
			Version:     Version,
		})
	}
}
