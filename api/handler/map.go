package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qrawl/fetch"
	"github.com/use-agent/qrawl/mapper"
	"github.com/use-agent/qrawl/models"
)

// MapRequest is the body of POST /api/v1/map. Either URL or HTML (with
// BaseURL) must be provided.
type MapRequest struct {
	URL     string `json:"url"`
	HTML    string `json:"html"`
	BaseURL string `json:"base_url"`
}

// MapResponse carries the mined structure of a page.
type MapResponse struct {
	Siblings     []string `json:"siblings"`
	SiblingLinks []string `json:"sibling_links"`
	ItemLists    []string `json:"itemlist_links"`
}

// Map returns the handler for POST /api/v1/map: detect the page's
// repeating sibling group and resolve its child URLs, both from the DOM
// structure and from JSON-LD ItemLists.
func Map(c *gin.Context) {
	var req MapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": models.ErrorDetail{Code: models.ErrCodeValidation, Message: err.Error()},
		})
		return
	}

	html, base := req.HTML, req.BaseURL
	if req.URL != "" {
		fetched, err := fetch.FetchHTML(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, err)
			return
		}
		html, base = fetched, req.URL
	}
	if html == "" || base == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": models.ErrorDetail{Code: models.ErrCodeValidation, Message: "provide url, or html with base_url"},
		})
		return
	}

	siblings := mapper.Siblings(html)
	resp := MapResponse{
		Siblings:     siblings,
		SiblingLinks: mapper.MapSiblingLinks(siblings, base),
		ItemLists:    mapper.ItemListLinks(html, base),
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": resp})
}
