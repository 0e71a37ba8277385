package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/turn"
)

// GetDrivers returns the current roster snapshot.
func (h *Handler) GetDrivers(c *gin.Context) {
	if h.roster == nil || !h.roster.Loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "roster is not loaded yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": h.roster.Snapshot()})
}

// ToggleTurn clocks a driver in or out by roster ID, the same way a scan would. It
// answers 409 while the scanner is handling a code.
func (h *Handler) ToggleTurn(c *gin.Context) {
	if h.roster == nil || h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner is not running"})
		return
	}
	d, ok := h.roster.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
		return
	}

	res, err := h.scanner.Manual(c.Request.Context(), d)
	switch {
	case errors.Is(err, scan.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case res.Outcome == nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Message})
		return
	}

	o := res.Outcome
	status := http.StatusOK
	switch {
	case o.Action == turn.ActionReject:
		status = http.StatusConflict
	case o.Kind == turn.OutcomeError:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"result":    o.Kind,
		"action":    o.Action,
		"message":   o.Message,
		"new_state": o.NewState,
	})
}
