// Package api exposes the timer control service over HTTP. A single
// middleware-composed gin pipeline serves every route; there is no
// per-route auth resolution.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timekeeper/internal/auth"
	"timekeeper/internal/usecase"
)

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router needs.
type Deps struct {
	Log      *slog.Logger
	Verifier *auth.Verifier
	Timers   *usecase.TimerService
	Items    *usecase.ItemService
	Health   Pinger
}

// New builds the gin engine with the full route table.
func New(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Log))

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{log: deps.Log, timers: deps.Timers, items: deps.Items}

	v1 := r.Group("/api/v1", Auth(deps.Verifier))
	{
		v1.POST("/tasks", h.createItem)
		v1.GET("/tasks/:id", h.getItem)
		v1.POST("/tasks/:id/timer/start", h.startTimer)
		v1.POST("/tasks/:id/timer/stop", h.stopTimer)

		v1.GET("/time-entries/running", h.runningTimer)
		v1.GET("/time-entries/day", h.entriesInWindow)
		v1.PUT("/time-entries/:id", h.updateEntry)
		v1.DELETE("/time-entries/:id", h.deleteEntry)
	}

	return r
}
