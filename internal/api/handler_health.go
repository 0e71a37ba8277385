package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetHealth reports daemon, database and fleet API reachability.
func (h *Handler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			body[name] = err.Error()
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			return
		}
		body[name] = "ok"
	}
	if h.store != nil {
		check("database", h.store)
	}
	check("fleet_api", h.upstream)

	if h.roster != nil {
		body["roster_loaded"] = h.roster.Loaded()
	}
	c.JSON(status, body)
}
