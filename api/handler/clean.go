package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qrawl/cleaner"
	"github.com/use-agent/qrawl/fetch"
	"github.com/use-agent/qrawl/models"
	"github.com/use-agent/qrawl/scrape"
)

// CleanRequest is the body of POST /api/v1/clean.
type CleanRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html"`

	// CSSSelector filters the output to matching elements.
	CSSSelector string `json:"css_selector"`

	// MainOnly narrows the input to the main content region first.
	MainOnly bool `json:"main_only"`
}

// Clean returns the handler for POST /api/v1/clean: strip junk
// elements and attributes from a page, optionally narrowed to the main
// region or a CSS selector.
func Clean(c *gin.Context) {
	var req CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": models.ErrorDetail{Code: models.ErrCodeValidation, Message: err.Error()},
		})
		return
	}

	html := req.HTML
	if req.URL != "" {
		fetched, err := fetch.FetchHTML(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, err)
			return
		}
		html = fetched
	}
	if html == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": models.ErrorDetail{Code: models.ErrCodeValidation, Message: "provide url or html"},
		})
		return
	}

	metadata := scrape.MetadataTags(html)

	if req.MainOnly {
		html = cleaner.MainContent(html)
	}
	if req.CSSSelector != "" {
		filtered, err := cleaner.ApplyCSSSelector(html, req.CSSSelector)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": models.ErrorDetail{Code: models.ErrCodeValidation, Message: "invalid css selector: " + err.Error()},
			})
			return
		}
		html = filtered
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "data": gin.H{
		"html":     cleaner.Clean(html),
		"metadata": metadata,
	}})
}
