package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qrawl"
	"github.com/use-agent/qrawl/models"
)

// CreatePolicy handles POST /api/v1/policies/:domain — probe the
// domain, infer a working policy, persist it. Refuses overwrite.
func CreatePolicy(client *qrawl.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		pol, err := client.CreatePolicy(c.Request.Context(), c.Param("domain"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "data": pol})
	}
}

// ReadPolicy handles GET /api/v1/policies/:domain.
func ReadPolicy(client *qrawl.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("domain")
		pol, err := client.ReadPolicy(target)
		if err != nil {
			respondError(c, err)
			return
		}
		if pol == nil {
			respondError(c, models.NewMissingPolicy(target))
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": pol})
	}
}

// ListPolicies handles GET /api/v1/policies.
func ListPolicies(client *qrawl.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		policies, err := client.ListPolicies()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": policies})
	}
}

// DeletePolicy handles DELETE /api/v1/policies/:domain. The special
// target "all" wipes the store and requires ?confirm=true.
func DeletePolicy(client *qrawl.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("domain")
		if target == "all" {
			if c.Query("confirm") != "true" {
				c.JSON(http.StatusBadRequest, gin.H{
					"ok": false,
					"error": models.ErrorDetail{
						Code:    models.ErrCodeValidation,
						Message: "refusing to delete all policies without confirm=true",
					},
				})
				return
			}
			if err := client.DeleteAllPolicies(); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"ok": true, "data": gin.H{"deleted": "all"}})
			return
		}

		if err := client.DeletePolicy(target); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": gin.H{"deleted": target}})
	}
}
