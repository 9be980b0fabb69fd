package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"insightflow/api/cache"
	"insightflow/api/logger"
	"insightflow/api/models"
	"insightflow/api/observability"
	"insightflow/api/store"
	"insightflow/api/utils"
)

const (
	// Unterminated sessions count as this long in the average.
	openSessionSeconds = 300

	dropOffPageLimit = 10
	dailyWindowDays  = 30
	timelineDays     = 30
	flowLimit        = 20
)

// MetricsService is the read side. Journey and conversion snapshots are
// served from the cache when present and recomputed from the event store
// otherwise.
type MetricsService struct {
	store   *store.EventStore
	cache   cache.Cache
	ttl     time.Duration
	now     func() time.Time
	metrics *observability.Metrics
	log     *logger.Logger
}

func NewMetricsService(s *store.EventStore, c cache.Cache, ttl time.Duration, now func() time.Time, metrics *observability.Metrics, log *logger.Logger) *MetricsService {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &MetricsService{
		store:   s,
		cache:   c,
		ttl:     ttl,
		now:     now,
		metrics: metrics,
		log:     log.With("service", "MetricsService"),
	}
}

// JourneyMetrics returns the journey snapshot and whether it came from cache.
func (m *MetricsService) JourneyMetrics(ctx context.Context) (*models.JourneyMetrics, bool, error) {
	var cached models.JourneyMetrics
	if m.lookup(ctx, cache.KeyJourneyMetrics, &cached) {
		return &cached, true, nil
	}

	out, err := m.computeJourney(ctx)
	if err != nil {
		return nil, false, err
	}
	m.remember(ctx, cache.KeyJourneyMetrics, out)
	return out, false, nil
}

func (m *MetricsService) computeJourney(ctx context.Context) (*models.JourneyMetrics, error) {
	var (
		sessions  store.SessionSummary
		total     int64
		dropOffs  []store.LabelCount
		counts    []store.LabelCount
		durations []store.ActivityDuration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sessions, err = m.store.SummarizeSessions(gctx, openSessionSeconds)
		return err
	})
	g.Go(func() (err error) {
		total, err = m.store.CountActivities(gctx)
		return err
	})
	g.Go(func() (err error) {
		dropOffs, err = m.store.TopDropOffPages(gctx, dropOffPageLimit)
		return err
	})
	g.Go(func() (err error) {
		counts, err = m.store.ActivityCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		durations, err = m.store.ActivityDurations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &models.JourneyMetrics{
		TotalSessions:      sessions.Total,
		AvgSessionDuration: utils.RoundInt(sessions.AvgDuration),
		ChurnRate:          utils.RoundInt(utils.Percent(sessions.Churned, sessions.Total)),
		DropOffPoints:      make([]models.DropOffPoint, 0, len(dropOffs)),
		ActivityBreakdown:  make([]models.ActivityBreakdown, 0, len(counts)),
		TimePerActivity:    make([]models.TimePerActivity, 0, len(durations)),
	}

	// Drop-off rate is blended against all activities, not per page.
	denominator := total
	if denominator == 0 {
		denominator = 1
	}
	for _, d := range dropOffs {
		out.DropOffPoints = append(out.DropOffPoints, models.DropOffPoint{
			Page:         d.Label,
			DropOffCount: d.Count,
			DropOffRate:  utils.Round(utils.Percent(d.Count, denominator), 2),
		})
	}
	for _, c := range counts {
		out.ActivityBreakdown = append(out.ActivityBreakdown, models.ActivityBreakdown{
			Activity:   c.Label,
			Count:      c.Count,
			Percentage: utils.Round(utils.Percent(c.Count, denominator), 2),
		})
	}
	for _, d := range durations {
		out.TimePerActivity = append(out.TimePerActivity, models.TimePerActivity{
			Activity:    d.Activity,
			AvgDuration: utils.Round(d.Average, 2),
			TotalTime:   d.Total,
		})
	}
	return out, nil
}

// ConversionMetrics returns the conversion snapshot and whether it came
// from cache.
func (m *MetricsService) ConversionMetrics(ctx context.Context) (*models.ConversionMetrics, bool, error) {
	var cached models.ConversionMetrics
	if m.lookup(ctx, cache.KeyConversionMetrics, &cached) {
		return &cached, true, nil
	}

	out, err := m.computeConversion(ctx)
	if err != nil {
		return nil, false, err
	}
	m.remember(ctx, cache.KeyConversionMetrics, out)
	return out, false, nil
}

func (m *MetricsService) computeConversion(ctx context.Context) (*models.ConversionMetrics, error) {
	var (
		users   store.ConversionUsers
		steps   []models.FunnelStepRollup
		daily   []store.DailyCount
		revenue store.RevenueSummary
	)

	now := m.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(dailyWindowDays - 1))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = m.store.CountConversionUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		steps, err = m.store.ListFunnelSteps(gctx)
		return err
	})
	g.Go(func() (err error) {
		daily, err = m.store.DailyConversions(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = m.store.SummarizeRevenue(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalUsers := users.Total
	if totalUsers == 0 {
		totalUsers = 1
	}

	out := &models.ConversionMetrics{
		BounceRate:            utils.RoundInt(utils.Percent(users.Bounced, totalUsers)),
		OverallConversionRate: utils.RoundInt(utils.Percent(users.Converted, totalUsers)),
		FunnelSteps:           make([]models.FunnelStep, 0, len(steps)),
		DailyConversions:      make([]models.DailyConversion, 0, len(daily)),
		RevenueMetrics: models.RevenueMetrics{
			TotalRevenue:    utils.Round(revenue.Total, 2),
			AvgOrderValue:   utils.RoundInt(revenue.Average),
			ConversionValue: utils.Round(revenue.Total, 2),
		},
	}
	for _, s := range steps {
		out.FunnelSteps = append(out.FunnelSteps, models.FunnelStep{
			Step:        s.StepName,
			StepOrder:   s.StepOrder,
			Entered:     s.UsersEntered,
			Completed:   s.UsersCompleted,
			DropOffRate: utils.Round(utils.Percent(s.UsersEntered-s.UsersCompleted, s.UsersEntered), 1),
		})
	}
	for _, d := range daily {
		out.DailyConversions = append(out.DailyConversions, models.DailyConversion{
			Date:        d.Date,
			Visitors:    d.Visitors,
			Conversions: d.Conversions,
			Rate:        utils.RoundInt(utils.Percent(d.Conversions, d.Visitors)),
		})
	}
	return out, nil
}

// Recommendations scores the current journey and conversion snapshots.
func (m *MetricsService) Recommendations(ctx context.Context) (*models.RecommendationsReport, error) {
	journey, _, err := m.JourneyMetrics(ctx)
	if err != nil {
		return nil, err
	}
	conversion, _, err := m.ConversionMetrics(ctx)
	if err != nil {
		return nil, err
	}
	report := BuildRecommendations(journey, conversion, m.now())
	return &report, nil
}

// ClearCache evicts both snapshots unconditionally. A cache failure is
// logged and otherwise ignored, like every other cache error.
func (m *MetricsService) ClearCache(ctx context.Context) {
	evict(ctx, m.cache, m.log, cache.KeyJourneyMetrics, cache.KeyConversionMetrics)
}

func (m *MetricsService) SessionTimeline(ctx context.Context) ([]models.SessionDay, error) {
	days, err := m.store.SessionTimeline(ctx, timelineDays)
	if err != nil {
		return nil, err
	}
	out := make([]models.SessionDay, 0, len(days))
	for _, d := range days {
		out = append(out, models.SessionDay{Date: d.Date, Sessions: d.Sessions, Churned: d.Churned})
	}
	return out, nil
}

func (m *MetricsService) JourneyFlow(ctx context.Context) ([]models.PageTransition, error) {
	transitions, err := m.store.PageTransitions(ctx, flowLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.PageTransition, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, models.PageTransition{FromPage: t.From, ToPage: t.To, Transitions: t.Count})
	}
	return out, nil
}

func (m *MetricsService) Funnel(ctx context.Context) ([]models.FunnelStepRollup, error) {
	return m.store.ListFunnelSteps(ctx)
}

func (m *MetricsService) lookup(ctx context.Context, key string, dest any) bool {
	hit, err := m.cache.Get(ctx, key, dest)
	if err != nil {
		m.log.Warn("Metrics cache read failed", "key", key, "error", err)
		hit = false
	}
	m.metrics.CacheLookup(key, hit)
	return hit
}

func (m *MetricsService) remember(ctx context.Context, key string, value any) {
	if err := m.cache.Set(ctx, key, value, m.ttl); err != nil {
		m.log.Warn("Metrics cache write failed", "key", key, "error", err)
	}
}
