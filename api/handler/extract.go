package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qrawl"
	"github.com/use-agent/qrawl/cache"
	"github.com/use-agent/qrawl/models"
)

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	URL string `json:"url" binding:"required"`

	// Mode selects the pipeline: "auto" (default), "known", "unknown".
	Mode string `json:"mode"`

	// MaxAgeMs enables the response cache for this request.
	MaxAgeMs int `json:"max_age_ms"`
}

// Extract returns the handler for POST /api/v1/extract.
func Extract(client *qrawl.Client, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok": false,
				"error": models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: err.Error(),
				},
			})
			return
		}
		if req.Mode == "" {
			req.Mode = "auto"
		}

		cacheKey := cache.Key(req.URL, req.Mode)
		if cc != nil && req.MaxAgeMs > 0 {
			if bundle, hit := cc.Get(cacheKey, time.Duration(req.MaxAgeMs)*time.Millisecond); hit {
				c.JSON(http.StatusOK, gin.H{"ok": true, "data": bundle, "cache": "hit"})
				return
			}
		}

		var (
			bundle *models.ExtractionBundle
			err    error
		)
		ctx := c.Request.Context()
		switch req.Mode {
		case "known":
			bundle, err = client.Extract(ctx, req.URL, false)
		case "unknown":
			bundle, err = client.Extract(ctx, req.URL, true)
		default:
			bundle, err = client.ExtractAuto(ctx, req.URL)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		if cc != nil && req.MaxAgeMs > 0 {
			cc.Set(cacheKey, bundle)
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": bundle})
	}
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	detail := models.ErrorDetail{Code: models.ErrCodeOther, Message: err.Error()}

	if qe, ok := err.(*models.QrawlError); ok {
		detail = *qe.ToDetail()
		switch qe.Code {
		case models.ErrCodeInvalidURL, models.ErrCodeMissingDomain, models.ErrCodeValidation:
			status = http.StatusBadRequest
		case models.ErrCodeMissingPolicy:
			status = http.StatusNotFound
		case models.ErrCodeFetch:
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, gin.H{"ok": false, "error": detail})
}
