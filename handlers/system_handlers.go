package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"insightflow/api/observability"
)

type SystemHandlers struct {
	Metrics *observability.Metrics
	now     func() time.Time
}

func NewSystemHandlers(m *observability.Metrics, now func() time.Time) *SystemHandlers {
	return &SystemHandlers{Metrics: m, now: now}
}

func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": h.now().UTC().Format(time.RFC3339)})
}

// Performance summarises the recent request window held in memory.
func (h *SystemHandlers) Performance(c *gin.Context) {
	c.JSON(http.StatusOK, h.Metrics.Timings.Snapshot())
}

func (h *SystemHandlers) Prometheus(c *gin.Context) {
	h.Metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
