package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightflow/api/cache"
	"insightflow/api/models"
)

func TestStartSession_Defaults(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.tracking.StartSession(context.Background(), models.StartSessionRequest{
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.UserID, "anon_"))
	assert.Len(t, s.UserID, len("anon_")+8)
	assert.Equal(t, "mobile", s.DeviceType)
	assert.Equal(t, "Safari", s.Browser)
	assert.Equal(t, "direct", s.ReferrerSource)
	assert.Equal(t, t0, s.StartedAt)

	stored, err := env.store.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, stored.UserID)
	assert.False(t, stored.IsChurned)
}

func TestStartSession_KeepsSuppliedFields(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.tracking.StartSession(context.Background(), models.StartSessionRequest{
		UserID: "u-1", DeviceType: "tablet", Browser: "Firefox", ReferrerSource: "newsletter", UserAgent: "curl/8",
	})
	require.NoError(t, err)

	assert.Equal(t, "u-1", s.UserID)
	assert.Equal(t, "tablet", s.DeviceType)
	assert.Equal(t, "Firefox", s.Browser)
	assert.Equal(t, "newsletter", s.ReferrerSource)
}

func TestStartSession_EvictsJourneyCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)

	env.startSession(t, "u-1")

	journey, hit, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(1), journey.TotalSessions)
}

func TestEndSession_UnknownIsNoop(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.tracking.EndSession(context.Background(), "missing"))
}

func TestEndSession_RequiresID(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.tracking.EndSession(context.Background(), " "), ErrValidation)
}

func TestEndSession_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.startSession(t, "u-1")

	env.clock.Advance(2 * time.Minute)
	require.NoError(t, env.tracking.EndSession(ctx, s.ID))
	first, err := env.store.GetSession(ctx, s.ID)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	require.NoError(t, env.tracking.EndSession(ctx, s.ID))
	second, err := env.store.GetSession(ctx, s.ID)
	require.NoError(t, err)

	require.NotNil(t, first.EndedAt)
	assert.True(t, first.EndedAt.Equal(*second.EndedAt))
	assert.True(t, first.EndedAt.Equal(t0.Add(2*time.Minute)))
}

func TestEndSession_MarksLastActivityAsDropOff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.startSession(t, "u-1")

	env.clock.Advance(time.Second)
	first := env.activity(t, s.ID, "/")
	env.clock.Advance(time.Second)
	last := env.activity(t, s.ID, "/cart")

	require.NoError(t, env.tracking.EndSession(ctx, s.ID))

	a, err := env.store.GetActivity(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, a.DropOff)
	a, err = env.store.GetActivity(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, a.DropOff)
}

func TestEndSession_DropOffFailureStillEvicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.startSession(t, "u-1")
	env.clock.Advance(time.Second)
	last := env.activity(t, s.ID, "/cart")

	_, _, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	restore := env.failUpdates(t, "activities")
	err = env.tracking.EndSession(ctx, s.ID)
	restore()
	require.Error(t, err)

	_, hit, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	// The session is closed, so a retry is a no-op and the job repairs it.
	require.NoError(t, env.tracking.EndSession(ctx, s.ID))
	n, err := env.jobs.DetectDropoffs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, err := env.store.GetActivity(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, a.DropOff)
}

func TestEndSession_ConfirmationPageIsNotDropOff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.startSession(t, "u-1")
	env.clock.Advance(time.Second)
	last := env.activity(t, s.ID, "/confirmation")

	require.NoError(t, env.tracking.EndSession(ctx, s.ID))

	a, err := env.store.GetActivity(ctx, last.ID)
	require.NoError(t, err)
	assert.False(t, a.DropOff)
}

func TestEndSession_PurchaseScopedToSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A purchase in an earlier visit does not protect this session.
	env.event(t, "u-1", models.EventPurchase, true, floatPtr(20))
	env.clock.Advance(time.Hour)

	s := env.startSession(t, "u-1")
	env.clock.Advance(time.Second)
	browse := env.activity(t, s.ID, "/products")
	require.NoError(t, env.tracking.EndSession(ctx, s.ID))

	a, err := env.store.GetActivity(ctx, browse.ID)
	require.NoError(t, err)
	assert.True(t, a.DropOff)

	// A purchase inside the session does.
	env.clock.Advance(time.Hour)
	s2 := env.startSession(t, "u-1")
	env.clock.Advance(time.Second)
	checkout := env.activity(t, s2.ID, "/checkout")
	env.event(t, "u-1", models.EventPurchase, true, floatPtr(35))
	env.clock.Advance(time.Second)
	require.NoError(t, env.tracking.EndSession(ctx, s2.ID))

	a, err = env.store.GetActivity(ctx, checkout.ID)
	require.NoError(t, err)
	assert.False(t, a.DropOff)
}

func TestRecordActivity_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []models.RecordActivityRequest{
		{ActivityName: "view", PagePath: "/"},
		{SessionID: "s", PagePath: "/"},
		{SessionID: "s", ActivityName: "view"},
		{SessionID: "s", ActivityName: "view", PagePath: "/", DurationSeconds: -1},
		{SessionID: "s", ActivityName: "view", PagePath: "/", ActivityType: "scroll"},
	}
	for _, req := range cases {
		_, err := env.tracking.RecordActivity(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	}

	n, err := env.store.CountActivities(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordActivity_EvictsJourneyCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.startSession(t, "u-1")
	env.activity(t, s.ID, "/")

	before, _, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	_, hit, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	require.True(t, hit)

	env.activity(t, s.ID, "/pricing")

	after, hit, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, before.ActivityBreakdown, 1)
	assert.Len(t, after.ActivityBreakdown, 2)
}

func TestRecordActivity_ArchivesWithMetadata(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.tracking.RecordActivity(context.Background(), models.RecordActivityRequest{
		SessionID: "s-1", ActivityName: "click cta", ActivityType: models.ActivityAction, PagePath: "/", Metadata: models.Metadata{"button": "hero"},
	})
	require.NoError(t, err)

	require.Len(t, env.sink.events, 1)
	got := env.sink.events[0]
	assert.Equal(t, a.ID, got.EventID)
	assert.Equal(t, "action", got.EventType)
	assert.JSONEq(t, `{"button":"hero"}`, string(got.EventData))
}

func TestUpdateActivityDuration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.activity(t, "s-1", "/")

	require.NoError(t, env.tracking.UpdateActivityDuration(ctx, a.ID, intPtr(42)))
	got, err := env.store.GetActivity(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.DurationSeconds)

	require.NoError(t, env.tracking.UpdateActivityDuration(ctx, a.ID, intPtr(0)))
	got, err = env.store.GetActivity(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.DurationSeconds)

	assert.ErrorIs(t, env.tracking.UpdateActivityDuration(ctx, a.ID, nil), ErrValidation)
	assert.ErrorIs(t, env.tracking.UpdateActivityDuration(ctx, a.ID, intPtr(-5)), ErrValidation)
	assert.ErrorIs(t, env.tracking.UpdateActivityDuration(ctx, "missing", intPtr(5)), ErrNotFound)
}

func TestUpdateActivityDuration_LeavesCacheAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.activity(t, "s-1", "/")

	_, _, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	require.NoError(t, env.tracking.UpdateActivityDuration(ctx, a.ID, intPtr(30)))

	_, hit, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestRecordEvent_Defaults(t *testing.T) {
	env := newTestEnv(t)
	ev, err := env.tracking.RecordEvent(context.Background(), models.RecordEventRequest{
		SessionID: "s-1", UserID: "u-1", EventType: models.EventAddToCart,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, ev.FunnelStep)
	assert.True(t, ev.Completed)
	assert.Nil(t, ev.Revenue)
	require.Len(t, env.sink.events, 1)
	assert.Equal(t, "u-1", env.sink.events[0].UserID)
}

func TestRecordEvent_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []models.RecordEventRequest{
		{UserID: "u", EventType: models.EventPurchase},
		{SessionID: "s", EventType: models.EventPurchase},
		{SessionID: "s", UserID: "u"},
		{SessionID: "s", UserID: "u", EventType: "refund"},
		{SessionID: "s", UserID: "u", EventType: models.EventPurchase, FunnelStep: -2},
	}
	for _, req := range cases {
		_, err := env.tracking.RecordEvent(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestRecordEvent_FunnelRollupCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.event(t, "u-ok", models.EventSignup, true, nil)
	}
	for i := 0; i < 2; i++ {
		env.event(t, "u-fail", models.EventSignup, false, nil)
	}

	steps, err := env.store.ListFunnelSteps(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, steps[1].StepOrder)
	assert.Equal(t, int64(5), steps[1].UsersEntered)
	assert.Equal(t, int64(3), steps[1].UsersCompleted)
	assert.Equal(t, int64(2), steps[1].DropOffCount)
}

func TestRecordEvent_StepFourDropOffRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.tracking.RecordEvent(ctx, models.RecordEventRequest{
		SessionID: "s-1", UserID: "u-1", EventType: models.EventCheckout, FunnelStep: 4,
	})
	require.NoError(t, err)

	conv, _, err := env.metrics.ConversionMetrics(ctx)
	require.NoError(t, err)
	step := conv.FunnelSteps[3]
	assert.Equal(t, int64(1), step.Entered)
	assert.Equal(t, int64(1), step.Completed)
	assert.Equal(t, 0.0, step.DropOffRate)

	incomplete := false
	_, err = env.tracking.RecordEvent(ctx, models.RecordEventRequest{
		SessionID: "s-1", UserID: "u-1", EventType: models.EventCheckout, FunnelStep: 4, Completed: &incomplete,
	})
	require.NoError(t, err)

	conv, hit, err := env.metrics.ConversionMetrics(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	step = conv.FunnelSteps[3]
	assert.Equal(t, int64(2), step.Entered)
	assert.Equal(t, int64(1), step.Completed)
	assert.Equal(t, 50.0, step.DropOffRate)
}

func TestRecordEvent_EvictsOnlyConversionCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.metrics.JourneyMetrics(ctx)
	require.NoError(t, err)
	_, _, err = env.metrics.ConversionMetrics(ctx)
	require.NoError(t, err)

	env.event(t, "u-1", models.EventPageView, true, nil)

	var snapshot models.JourneyMetrics
	hit, err := env.cache.Get(ctx, cache.KeyJourneyMetrics, &snapshot)
	require.NoError(t, err)
	assert.True(t, hit)
	hit, err = env.cache.Get(ctx, cache.KeyConversionMetrics, &snapshot)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRecordEvent_RollupFailureStillEvicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.event(t, "u-1", models.EventPageView, true, nil)
	before, _, err := env.metrics.ConversionMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, before.OverallConversionRate)

	restore := env.failUpdates(t, "funnel_steps")
	completed := true
	_, err = env.tracking.RecordEvent(ctx, models.RecordEventRequest{
		SessionID: "s-u-2", UserID: "u-2", EventType: models.EventPurchase, Completed: &completed, Revenue: floatPtr(20),
	})
	restore()
	require.Error(t, err)

	after, hit, err := env.metrics.ConversionMetrics(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(50), after.OverallConversionRate)
	assert.Equal(t, int64(0), after.FunnelSteps[4].Entered)

	n, err := env.jobs.ReconcileFunnel(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	steps, err := env.store.ListFunnelSteps(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), steps[4].UsersEntered)
}

func TestRecordFeedback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	comment := "checkout was slow"
	fb, err := env.tracking.RecordFeedback(ctx, models.RecordFeedbackRequest{
		UserID: "u-1", FeedbackType: "comment", Comment: &comment,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, t0, fb.Timestamp)

	_, err = env.tracking.RecordFeedback(ctx, models.RecordFeedbackRequest{FeedbackType: "nps"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.tracking.RecordFeedback(ctx, models.RecordFeedbackRequest{UserID: "u-1", FeedbackType: "emoji"})
	assert.ErrorIs(t, err, ErrValidation)
}
