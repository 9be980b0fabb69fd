package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"insightflow/api/cache"
	"insightflow/api/logger"
	"insightflow/api/models"
	"insightflow/api/store"
	"insightflow/api/utils"
)

// EventSink receives a copy of every accepted activity and conversion
// event. Enqueue must not block.
type EventSink interface {
	Enqueue(event models.ArchivedEvent)
}

// TrackingService is the ingestion path. Every write that changes an input
// of a cached metrics snapshot evicts that snapshot before returning.
type TrackingService struct {
	store            *store.EventStore
	cache            cache.Cache
	sink             EventSink
	confirmationPath string
	now              func() time.Time
	log              *logger.Logger
}

func NewTrackingService(s *store.EventStore, c cache.Cache, sink EventSink, confirmationPath string, now func() time.Time, log *logger.Logger) *TrackingService {
	return &TrackingService{
		store:            s,
		cache:            c,
		sink:             sink,
		confirmationPath: confirmationPath,
		now:              now,
		log:              log.With("service", "TrackingService"),
	}
}

func (s *TrackingService) StartSession(ctx context.Context, req models.StartSessionRequest) (*models.Session, error) {
	session := &models.Session{
		ID:             uuid.NewString(),
		UserID:         strings.TrimSpace(req.UserID),
		DeviceType:     req.DeviceType,
		Browser:        req.Browser,
		ReferrerSource: req.ReferrerSource,
		StartedAt:      s.now().UTC(),
	}
	if session.UserID == "" {
		session.UserID = "anon_" + uuid.NewString()[:8]
	}
	if session.DeviceType == "" {
		session.DeviceType = utils.DetectDeviceType(req.UserAgent)
	}
	if session.Browser == "" {
		session.Browser = utils.DetectBrowser(req.UserAgent)
	}
	if session.ReferrerSource == "" {
		session.ReferrerSource = "direct"
	}

	if err := s.store.InsertSession(ctx, session); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.KeyJourneyMetrics)
	return session, nil
}

// EndSession closes a session once. Unknown ids and repeat calls are
// no-ops. On the closing call the last activity is flagged as a drop-off
// unless it is the confirmation page or the user purchased during the
// session.
func (s *TrackingService) EndSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return validationError("sessionId is required")
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Debug("Ignoring end for unknown session", "session_id", sessionID)
			return nil
		}
		return err
	}

	endedAt := s.now().UTC()
	ended, err := s.store.EndSession(ctx, sessionID, endedAt)
	if err != nil {
		return err
	}
	if !ended {
		return nil
	}
	// endedAt is committed; the snapshot is stale even if marking fails.
	// A missed drop-off is picked up by DetectDropoffs.
	defer s.invalidate(ctx, cache.KeyJourneyMetrics)

	return s.markDropOff(ctx, session, endedAt)
}

func (s *TrackingService) markDropOff(ctx context.Context, session *models.Session, endedAt time.Time) error {
	last, err := s.store.LastActivity(ctx, session.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if last.PagePath == s.confirmationPath {
		return nil
	}

	purchased, err := s.store.HasPurchaseBetween(ctx, session.UserID, session.StartedAt, endedAt)
	if err != nil {
		return err
	}
	if purchased {
		return nil
	}

	if _, err := s.store.MarkDropOff(ctx, last.ID); err != nil {
		return err
	}
	return nil
}

func (s *TrackingService) RecordActivity(ctx context.Context, req models.RecordActivityRequest) (*models.Activity, error) {
	switch {
	case strings.TrimSpace(req.SessionID) == "":
		return nil, validationError("sessionId is required")
	case strings.TrimSpace(req.ActivityName) == "":
		return nil, validationError("activityName is required")
	case strings.TrimSpace(req.PagePath) == "":
		return nil, validationError("pagePath is required")
	case req.DurationSeconds < 0:
		return nil, validationError("durationSeconds must not be negative")
	}

	activityType := req.ActivityType
	if activityType == "" {
		activityType = models.ActivityPageView
	}
	if !activityType.Valid() {
		return nil, validationError("unknown activityType %q", activityType)
	}

	activity := &models.Activity{
		ID:              uuid.NewString(),
		SessionID:       req.SessionID,
		ActivityName:    req.ActivityName,
		ActivityType:    activityType,
		PagePath:        req.PagePath,
		DurationSeconds: req.DurationSeconds,
		Timestamp:       s.now().UTC(),
		Metadata:        req.Metadata,
	}
	if err := s.store.InsertActivity(ctx, activity); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.KeyJourneyMetrics)

	s.archive(models.ArchivedEvent{
		EventID:   activity.ID,
		EventType: string(activity.ActivityType),
		SessionID: activity.SessionID,
		Timestamp: activity.Timestamp,
		PagePath:  activity.PagePath,
	}, activity.Metadata)
	return activity, nil
}

// UpdateActivityDuration overwrites a recorded duration. Zero is a valid
// duration. The cached journey snapshot is left as is.
func (s *TrackingService) UpdateActivityDuration(ctx context.Context, activityID string, seconds *int) error {
	if seconds == nil {
		return validationError("durationSeconds is required")
	}
	if *seconds < 0 {
		return validationError("durationSeconds must not be negative")
	}

	found, err := s.store.UpdateActivityDuration(ctx, activityID, *seconds)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("activity %s: %w", activityID, ErrNotFound)
	}
	return nil
}

func (s *TrackingService) RecordEvent(ctx context.Context, req models.RecordEventRequest) (*models.ConversionEvent, error) {
	switch {
	case strings.TrimSpace(req.SessionID) == "":
		return nil, validationError("sessionId is required")
	case strings.TrimSpace(req.UserID) == "":
		return nil, validationError("userId is required")
	case req.EventType == "":
		return nil, validationError("eventType is required")
	case !req.EventType.Valid():
		return nil, validationError("unknown eventType %q", req.EventType)
	case req.FunnelStep < 0:
		return nil, validationError("funnelStep must not be negative")
	}

	step := req.FunnelStep
	if step == 0 {
		step = models.FunnelStepForEvent(req.EventType)
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	event := &models.ConversionEvent{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		EventType:  req.EventType,
		FunnelStep: step,
		Completed:  completed,
		Revenue:    req.Revenue,
		Timestamp:  s.now().UTC(),
		Metadata:   req.Metadata,
	}
	if err := s.store.InsertConversionEvent(ctx, event); err != nil {
		return nil, err
	}
	// The event row is committed from here on. Rollup drift left by a
	// failed increment is repaired by ReconcileFunnel.
	defer s.invalidate(ctx, cache.KeyConversionMetrics)

	if err := s.store.IncrementFunnelStep(ctx, step, completed, event.Timestamp); err != nil {
		return nil, err
	}

	archived := models.ArchivedEvent{
		EventID:   event.ID,
		EventType: string(event.EventType),
		UserID:    event.UserID,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
	}
	if event.Revenue != nil {
		archived.Revenue = *event.Revenue
	}
	s.archive(archived, event.Metadata)
	return event, nil
}

func (s *TrackingService) RecordFeedback(ctx context.Context, req models.RecordFeedbackRequest) (*models.Feedback, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, validationError("userId is required")
	}
	if !models.ValidFeedbackType(req.FeedbackType) {
		return nil, validationError("feedbackType must be one of rating, comment, nps, survey")
	}

	feedback := &models.Feedback{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		FeedbackType: req.FeedbackType,
		Rating:       req.Rating,
		Comment:      req.Comment,
		PagePath:     req.PagePath,
		Timestamp:    s.now().UTC(),
	}
	if err := s.store.InsertFeedback(ctx, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

func (s *TrackingService) invalidate(ctx context.Context, keys ...string) {
	evict(ctx, s.cache, s.log, keys...)
}

func (s *TrackingService) archive(event models.ArchivedEvent, metadata models.Metadata) {
	if s.sink == nil {
		return
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			event.EventData = raw
		}
	}
	s.sink.Enqueue(event)
}

// evict drops cached snapshots. Failures are logged and otherwise ignored.
func evict(ctx context.Context, c cache.Cache, log *logger.Logger, keys ...string) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		log.Warn("Failed to evict metrics cache", "keys", keys, "error", err)
	}
}
