package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/middleware"
	"insightflow/api/observability"
	"insightflow/api/services"
)

// MetricsHandlers serve the dashboard read API.
type MetricsHandlers struct {
	Metrics *services.MetricsService
	log     *logger.Logger
}

func NewMetricsHandlers(s *services.MetricsService, log *logger.Logger) *MetricsHandlers {
	return &MetricsHandlers{Metrics: s, log: log.With("handler", "MetricsHandlers")}
}

func markCache(c *gin.Context, hit bool) {
	status := observability.CacheMiss
	if hit {
		status = observability.CacheHit
	}
	c.Set(middleware.CacheStatusKey, status)
	c.Header("X-Cache", status)
}

func (h *MetricsHandlers) GetJourneyMetrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	journey, hit, err := h.Metrics.JourneyMetrics(ctx)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch journey metrics")
		return
	}
	markCache(c, hit)
	c.JSON(http.StatusOK, journey)
}

func (h *MetricsHandlers) GetConversionMetrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	conversion, hit, err := h.Metrics.ConversionMetrics(ctx)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch conversion metrics")
		return
	}
	markCache(c, hit)
	c.JSON(http.StatusOK, conversion)
}

func (h *MetricsHandlers) GetRecommendations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	report, err := h.Metrics.Recommendations(ctx)
	if err != nil {
		respondError(c, h.log, err, "Failed to build recommendations")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *MetricsHandlers) GetSessionTimeline(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	days, err := h.Metrics.SessionTimeline(ctx)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch session timeline")
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *MetricsHandlers) GetJourneyFlow(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	flow, err := h.Metrics.JourneyFlow(ctx)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch journey flow")
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *MetricsHandlers) GetFunnel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	steps, err := h.Metrics.Funnel(ctx)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch funnel")
		return
	}
	c.JSON(http.StatusOK, steps)
}
