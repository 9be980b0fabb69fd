package services

import (
	"context"
	"time"

	"insightflow/api/cache"
	"insightflow/api/logger"
	"insightflow/api/observability"
	"insightflow/api/store"
)

const (
	JobDetectChurn     = "detect_churn"
	JobDetectDropoffs  = "detect_dropoffs"
	JobReconcileFunnel = "reconcile_funnel"
)

// JobsService runs the corrective sweeps. Each is idempotent: a second run
// with no intervening writes changes nothing.
type JobsService struct {
	store            *store.EventStore
	cache            cache.Cache
	churnWindow      time.Duration
	confirmationPath string
	now              func() time.Time
	metrics          *observability.Metrics
	log              *logger.Logger
}

func NewJobsService(s *store.EventStore, c cache.Cache, churnWindow time.Duration, confirmationPath string, now func() time.Time, metrics *observability.Metrics, log *logger.Logger) *JobsService {
	return &JobsService{
		store:            s,
		cache:            c,
		churnWindow:      churnWindow,
		confirmationPath: confirmationPath,
		now:              now,
		metrics:          metrics,
		log:              log.With("service", "JobsService"),
	}
}

func (j *JobsService) DetectChurn(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.churnWindow)
	n, err := j.store.DetectChurn(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	j.finish(ctx, JobDetectChurn, n, cache.KeyJourneyMetrics)
	return n, nil
}

func (j *JobsService) DetectDropoffs(ctx context.Context) (int64, error) {
	n, err := j.store.DetectDropoffs(ctx, j.confirmationPath)
	if err != nil {
		return 0, err
	}
	j.finish(ctx, JobDetectDropoffs, n, cache.KeyJourneyMetrics)
	return n, nil
}

// ReconcileFunnel rebuilds the funnel rollup from raw conversion events.
func (j *JobsService) ReconcileFunnel(ctx context.Context) (int64, error) {
	n, err := j.store.ReconcileFunnel(ctx, j.now())
	if err != nil {
		return 0, err
	}
	j.finish(ctx, JobReconcileFunnel, n, cache.KeyConversionMetrics)
	return n, nil
}

func (j *JobsService) finish(ctx context.Context, job string, rows int64, keys ...string) {
	evict(ctx, j.cache, j.log, keys...)
	j.metrics.JobRows(job, rows)
	j.log.Info("Batch job finished", "job", job, "rows_affected", rows)
}
