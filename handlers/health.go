package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Version is reported by the health endpoint
var Version = "dev"

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db          Pinger
	subscribers func() int
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, subscribers func() int) *HealthHandler {
	return &HealthHandler{db: db, subscribers: subscribers}
}

// HealthCheck returns the health status of the service
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	database := "ok"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status, code, database = "unhealthy", http.StatusServiceUnavailable, err.Error()
		}
	}

	body := gin.H{
		"status":    status,
		"service":   "mediaserver",
		"version":   Version,
		"database":  database,
		"timestamp": time.Now().Unix(),
	}
	if h.subscribers != nil {
		body["subscribers"] = h.subscribers()
	}
	c.JSON(code, body)
}
