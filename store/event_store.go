package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"insightflow/api/database"
	"insightflow/api/models"
)

var ErrNotFound = errors.New("not found")

// EventStore is the durable store for sessions, activities, conversion
// events, feedback and the funnel rollup. Every statement is independent;
// only funnel reconciliation runs inside a transaction.
type EventStore struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewEventStore(client *database.DBClient) *EventStore {
	return &EventStore{db: client.DB, dialect: client.Dialect}
}

// utc normalises timestamps before they are written so every row shares
// one representation (SQLite compares them as text).
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *EventStore) InsertSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_type, browser, referrer_source, started_at, is_churned)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, session.ID, session.UserID, session.DeviceType, session.Browser, session.ReferrerSource, utc(session.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *EventStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_type, browser, referrer_source, started_at, ended_at, is_churned
		FROM sessions
		WHERE id = $1
	`, id).Scan(
		&session.ID,
		&session.UserID,
		&session.DeviceType,
		&session.Browser,
		&session.ReferrerSource,
		&session.StartedAt,
		&endedAt,
		&session.IsChurned,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	return session, nil
}

// EndSession stamps ended_at unless it is already set. It reports whether
// this call was the one that ended the session.
func (s *EventStore) EndSession(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at = $1
		WHERE id = $2 AND ended_at IS NULL
	`, utc(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *EventStore) InsertActivity(ctx context.Context, a *models.Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, session_id, activity_name, activity_type, page_path, duration_seconds, recorded_at, drop_off, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
	`, a.ID, a.SessionID, a.ActivityName, string(a.ActivityType), a.PagePath, a.DurationSeconds, utc(a.Timestamp), a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (s *EventStore) GetActivity(ctx context.Context, id string) (*models.Activity, error) {
	return s.scanActivity(s.db.QueryRowContext(ctx, `
		SELECT id, session_id, activity_name, activity_type, page_path, duration_seconds, recorded_at, drop_off, metadata
		FROM activities
		WHERE id = $1
	`, id))
}

// LastActivity returns the chronologically last activity of a session.
func (s *EventStore) LastActivity(ctx context.Context, sessionID string) (*models.Activity, error) {
	return s.scanActivity(s.db.QueryRowContext(ctx, `
		SELECT id, session_id, activity_name, activity_type, page_path, duration_seconds, recorded_at, drop_off, metadata
		FROM activities
		WHERE session_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, sessionID))
}

func (s *EventStore) scanActivity(row *sql.Row) (*models.Activity, error) {
	a := &models.Activity{}
	var activityType string
	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.ActivityName,
		&activityType,
		&a.PagePath,
		&a.DurationSeconds,
		&a.Timestamp,
		&a.DropOff,
		&a.Metadata,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("activity: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}
	a.ActivityType = models.ActivityType(activityType)
	return a, nil
}

// UpdateActivityDuration overwrites the duration. It reports whether the
// activity exists.
func (s *EventStore) UpdateActivityDuration(ctx context.Context, id string, seconds int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE activities SET duration_seconds = $1 WHERE id = $2`, seconds, id)
	if err != nil {
		return false, fmt.Errorf("failed to update activity duration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *EventStore) MarkDropOff(ctx context.Context, activityID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE activities SET drop_off = TRUE WHERE id = $1 AND drop_off = FALSE`, activityID)
	if err != nil {
		return false, fmt.Errorf("failed to mark drop-off: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// HasPurchaseBetween reports whether the user completed a purchase inside
// [from, to].
func (s *EventStore) HasPurchaseBetween(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM conversion_events
		WHERE user_id = $1
		AND event_type = 'purchase'
		AND completed = TRUE
		AND recorded_at >= $2
		AND recorded_at <= $3
		LIMIT 1
	`, userID, utc(from), utc(to)).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check purchases: %w", err)
	}
	return true, nil
}

func (s *EventStore) InsertConversionEvent(ctx context.Context, e *models.ConversionEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversion_events (id, session_id, user_id, event_type, funnel_step, completed, recorded_at, revenue, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.SessionID, e.UserID, string(e.EventType), e.FunnelStep, e.Completed, utc(e.Timestamp), e.Revenue, e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert conversion event: %w", err)
	}
	return nil
}

// IncrementFunnelStep bumps the rollup row for one step in a single
// statement. Steps outside the seeded set get a row on first use.
func (s *EventStore) IncrementFunnelStep(ctx context.Context, step int, completed bool, at time.Time) error {
	var completedInc, dropInc int
	if completed {
		completedInc = 1
	} else {
		dropInc = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funnel_steps (step_order, step_name, users_entered, users_completed, drop_off_count, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (step_order) DO UPDATE SET
			users_entered = funnel_steps.users_entered + 1,
			users_completed = funnel_steps.users_completed + excluded.users_completed,
			drop_off_count = funnel_steps.drop_off_count + excluded.drop_off_count,
			updated_at = excluded.updated_at
	`, step, fmt.Sprintf("Step %d", step), completedInc, dropInc, utc(at))
	if err != nil {
		return fmt.Errorf("failed to update funnel step %d: %w", step, err)
	}
	return nil
}

func (s *EventStore) ListFunnelSteps(ctx context.Context) ([]models.FunnelStepRollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_order, step_name, users_entered, users_completed, drop_off_count, updated_at
		FROM funnel_steps
		ORDER BY step_order
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel steps: %w", err)
	}
	defer rows.Close()

	results := []models.FunnelStepRollup{}
	for rows.Next() {
		var r models.FunnelStepRollup
		if err := rows.Scan(&r.StepOrder, &r.StepName, &r.UsersEntered, &r.UsersCompleted, &r.DropOffCount, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan funnel step: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funnel steps: %w", err)
	}
	return results, nil
}

func (s *EventStore) InsertFeedback(ctx context.Context, f *models.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, session_id, feedback_type, rating, comment, page_path, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, f.ID, f.UserID, f.SessionID, f.FeedbackType, f.Rating, f.Comment, f.PagePath, utc(f.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}
