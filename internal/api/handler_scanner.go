package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-checkpoint/internal/scan"
)

// GetScanner returns the current scanner session.
func (h *Handler) GetScanner(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner is not running"})
		return
	}
	c.JSON(http.StatusOK, h.scanner.Session())
}

// StreamScanner pushes every session change as a server-sent event until the client
// disconnects.
func (h *Handler) StreamScanner(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner is not running"})
		return
	}
	updates, unsubscribe := h.scanner.Subscribe()
	defer unsubscribe()

	c.SSEvent("session", h.scanner.Session())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case s := <-updates:
			c.SSEvent("session", s)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

type submitPayloadRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// SubmitPayload injects a decoded payload, e.g. from a handheld scanner.
func (h *Handler) SubmitPayload(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner is not running"})
		return
	}
	var req submitPayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.scanner.Submit(req.Payload); err != nil {
		if errors.Is(err, scan.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}
