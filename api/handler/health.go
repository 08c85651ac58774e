package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health returns the handler for GET /api/v1/health. It sits outside
// auth so monitoring probes always work.
func Health(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(startTime).Seconds()),
		})
	}
}
