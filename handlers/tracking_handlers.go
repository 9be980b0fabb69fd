package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/models"
	"insightflow/api/services"
)

// TrackingHandlers serve the ingestion endpoints used by the storefront SDK.
type TrackingHandlers struct {
	Tracking *services.TrackingService
	log      *logger.Logger
}

func NewTrackingHandlers(s *services.TrackingService, log *logger.Logger) *TrackingHandlers {
	return &TrackingHandlers{Tracking: s, log: log.With("handler", "TrackingHandlers")}
}

func (h *TrackingHandlers) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	// Every field is optional, so an empty body is fine.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	session, err := h.Tracking.StartSession(ctx, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to start session")
		return
	}

	c.JSON(http.StatusCreated, models.StartSessionResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		StartedAt: session.StartedAt.Format(time.RFC3339),
	})
}

func (h *TrackingHandlers) EndSession(c *gin.Context) {
	var req models.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Tracking.EndSession(ctx, req.SessionID); err != nil {
		respondError(c, h.log, err, "Failed to end session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": req.SessionID})
}

func (h *TrackingHandlers) RecordActivity(c *gin.Context) {
	var req models.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	activity, err := h.Tracking.RecordActivity(ctx, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to record activity")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"activityId": activity.ID,
		"timestamp":  activity.Timestamp.Format(time.RFC3339),
	})
}

func (h *TrackingHandlers) UpdateActivityDuration(c *gin.Context) {
	var req models.UpdateDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Tracking.UpdateActivityDuration(ctx, c.Param("activityId"), req.DurationSeconds); err != nil {
		respondError(c, h.log, err, "Failed to update duration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TrackingHandlers) RecordEvent(c *gin.Context) {
	var req models.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	event, err := h.Tracking.RecordEvent(ctx, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to record event")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"eventId":    event.ID,
		"funnelStep": event.FunnelStep,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
	})
}

func (h *TrackingHandlers) RecordFeedback(c *gin.Context) {
	var req models.RecordFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	feedback, err := h.Tracking.RecordFeedback(ctx, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to record feedback")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"feedbackId": feedback.ID,
		"timestamp":  feedback.Timestamp.Format(time.RFC3339),
	})
}
