package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/models"
	"insightflow/api/services"
)

type InsightHandlers struct {
	Insights *services.InsightService
	log      *logger.Logger
}

func NewInsightHandlers(s *services.InsightService, log *logger.Logger) *InsightHandlers {
	return &InsightHandlers{Insights: s, log: log.With("handler", "InsightHandlers")}
}

func (h *InsightHandlers) ListQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": h.Insights.Questions()})
}

func (h *InsightHandlers) GetInsight(c *gin.Context) {
	var req models.InsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	// Generation is a remote call; allow for a slow model.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
	defer cancel()

	insight, err := h.Insights.Insight(ctx, req.QuestionID, req.MetricsData)
	if err != nil {
		respondError(c, h.log, err, "Failed to generate insight")
		return
	}
	c.JSON(http.StatusOK, insight)
}
