package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultScanLimit = 50

// GetScans returns the most recent journaled scans, newest first.
func (h *Handler) GetScans(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal is not available"})
		return
	}

	limit := defaultScanLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := h.store.RecentScans(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve scans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": events})
}
