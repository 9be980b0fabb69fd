package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/services"
)

// AdminHandlers expose the batch jobs and cache control to the scheduler
// and operators.
type AdminHandlers struct {
	Jobs    *services.JobsService
	Metrics *services.MetricsService
	log     *logger.Logger
}

func NewAdminHandlers(jobs *services.JobsService, metrics *services.MetricsService, log *logger.Logger) *AdminHandlers {
	return &AdminHandlers{Jobs: jobs, Metrics: metrics, log: log.With("handler", "AdminHandlers")}
}

// Sweeps touch every ended session, so they get more time than a request.
const jobTimeout = 2 * time.Minute

func (h *AdminHandlers) runJob(c *gin.Context, name string, job func(context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), jobTimeout)
	defer cancel()

	rows, err := job(ctx)
	if err != nil {
		respondError(c, h.log, err, fmt.Sprintf("Failed to run %s", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("%s completed", name),
		"rowsAffected": rows,
	})
}

func (h *AdminHandlers) DetectChurn(c *gin.Context) {
	h.runJob(c, "Churn detection", h.Jobs.DetectChurn)
}

func (h *AdminHandlers) DetectDropoffs(c *gin.Context) {
	h.runJob(c, "Drop-off detection", h.Jobs.DetectDropoffs)
}

func (h *AdminHandlers) ReconcileFunnel(c *gin.Context) {
	h.runJob(c, "Funnel reconciliation", h.Jobs.ReconcileFunnel)
}

func (h *AdminHandlers) ClearCache(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	h.Metrics.ClearCache(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Metrics cache cleared"})
}
