package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"insightflow/api/cache"
	"insightflow/api/database"
	"insightflow/api/logger"
	"insightflow/api/models"
	"insightflow/api/store"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ArchivedEvent
}

func (s *recordingSink) Enqueue(e models.ArchivedEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

type testEnv struct {
	db       *database.DBClient
	clock    *testClock
	store    *store.EventStore
	cache    *cache.MemoryCache
	sink     *recordingSink
	tracking *TrackingService
	metrics  *MetricsService
	jobs     *JobsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client, err := database.NewSQLiteDB(":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.Migrate(context.Background(), t0))

	env := &testEnv{
		db:    client,
		clock: &testClock{now: t0},
		store: store.NewEventStore(client),
		sink:  &recordingSink{},
	}
	env.cache = cache.NewMemoryCache(env.clock.Now)
	env.tracking = NewTrackingService(env.store, env.cache, env.sink, "/confirmation", env.clock.Now, logger.Nop())
	env.metrics = NewMetricsService(env.store, env.cache, 300*time.Second, env.clock.Now, nil, logger.Nop())
	env.jobs = NewJobsService(env.store, env.cache, 30*24*time.Hour, "/confirmation", env.clock.Now, nil, logger.Nop())
	return env
}

func (e *testEnv) startSession(t *testing.T, userID string) *models.Session {
	t.Helper()
	s, err := e.tracking.StartSession(context.Background(), models.StartSessionRequest{UserID: userID})
	require.NoError(t, err)
	return s
}

func (e *testEnv) activity(t *testing.T, sessionID, page string) *models.Activity {
	t.Helper()
	a, err := e.tracking.RecordActivity(context.Background(), models.RecordActivityRequest{
		SessionID: sessionID, ActivityName: "view " + page, PagePath: page,
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) event(t *testing.T, userID string, typ models.EventType, completed bool, revenue *float64) *models.ConversionEvent {
	t.Helper()
	ev, err := e.tracking.RecordEvent(context.Background(), models.RecordEventRequest{
		SessionID: "s-" + userID, UserID: userID, EventType: typ, Completed: &completed, Revenue: revenue,
	})
	require.NoError(t, err)
	return ev
}

// failUpdates makes every UPDATE on table abort until the returned func
// is called.
func (e *testEnv) failUpdates(t *testing.T, table string) func() {
	t.Helper()
	ctx := context.Background()
	_, err := e.db.DB.ExecContext(ctx, `CREATE TRIGGER fail_`+table+` BEFORE UPDATE ON `+table+
		` BEGIN SELECT RAISE(ABORT, 'forced failure'); END`)
	require.NoError(t, err)
	return func() {
		_, err := e.db.DB.ExecContext(ctx, `DROP TRIGGER fail_`+table)
		require.NoError(t, err)
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
