package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SessionSummary struct {
	Total       int64
	Churned     int64
	AvgDuration float64
}

type LabelCount struct {
	Label string
	Count int64
}

type ActivityDuration struct {
	Activity string
	Average  float64
	Total    int64
}

type ConversionUsers struct {
	Total     int64
	Bounced   int64
	Converted int64
}

type DailyCount struct {
	Date        string
	Visitors    int64
	Conversions int64
}

type RevenueSummary struct {
	Total     float64
	Average   float64
	Purchases int64
}

type SessionDayCount struct {
	Date     string
	Sessions int64
	Churned  int64
}

type Transition struct {
	From  string
	To    string
	Count int64
}

// SummarizeSessions counts sessions and averages their duration, treating
// every unterminated session as lasting openSeconds.
func (s *EventStore) SummarizeSessions(ctx context.Context, openSeconds int) (SessionSummary, error) {
	var summary SessionSummary
	var avg sql.NullFloat64
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_churned THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN ended_at IS NOT NULL THEN %s ELSE $1 END)
		FROM sessions
	`, s.dialect.SecondsBetween("started_at", "ended_at"))
	if err := s.db.QueryRowContext(ctx, query, openSeconds).Scan(&summary.Total, &summary.Churned, &avg); err != nil {
		return summary, fmt.Errorf("failed to summarize sessions: %w", err)
	}
	summary.AvgDuration = avg.Float64
	return summary, nil
}

func (s *EventStore) CountActivities(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

// TopDropOffPages returns pages ranked by drop-off flagged activities.
func (s *EventStore) TopDropOffPages(ctx context.Context, limit int) ([]LabelCount, error) {
	return s.queryLabelCounts(ctx, `
		SELECT page_path, COUNT(*) AS drop_off_count
		FROM activities
		WHERE drop_off = TRUE
		GROUP BY page_path
		ORDER BY drop_off_count DESC, page_path ASC
		LIMIT $1
	`, limit)
}

func (s *EventStore) ActivityCounts(ctx context.Context) ([]LabelCount, error) {
	return s.queryLabelCounts(ctx, `
		SELECT activity_name, COUNT(*) AS activity_count
		FROM activities
		GROUP BY activity_name
		ORDER BY activity_count DESC, activity_name ASC
	`)
}

func (s *EventStore) queryLabelCounts(ctx context.Context, query string, args ...interface{}) ([]LabelCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	results := []LabelCount{}
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		results = append(results, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}
	return results, nil
}

// ActivityDurations returns average and total duration per activity name,
// longest average first.
func (s *EventStore) ActivityDurations(ctx context.Context) ([]ActivityDuration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_name, AVG(duration_seconds) AS avg_duration, COALESCE(SUM(duration_seconds), 0)
		FROM activities
		GROUP BY activity_name
		ORDER BY avg_duration DESC, activity_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity durations: %w", err)
	}
	defer rows.Close()

	results := []ActivityDuration{}
	for rows.Next() {
		var d ActivityDuration
		if err := rows.Scan(&d.Activity, &d.Average, &d.Total); err != nil {
			return nil, fmt.Errorf("failed to scan activity duration: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity durations: %w", err)
	}
	return results, nil
}

func (s *EventStore) CountConversionUsers(ctx context.Context) (ConversionUsers, error) {
	var u ConversionUsers
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT user_id) FROM conversion_events),
			(SELECT COUNT(*) FROM (
				SELECT user_id FROM conversion_events GROUP BY user_id HAVING COUNT(*) = 1
			) single_event_users),
			(SELECT COUNT(DISTINCT user_id) FROM conversion_events
				WHERE event_type = 'purchase' AND completed = TRUE)
	`).Scan(&u.Total, &u.Bounced, &u.Converted)
	if err != nil {
		return u, fmt.Errorf("failed to count conversion users: %w", err)
	}
	return u, nil
}

// DailyConversions groups events recorded at or after since by calendar
// date, newest first.
func (s *EventStore) DailyConversions(ctx context.Context, since time.Time) ([]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			CAST(DATE(recorded_at) AS TEXT) AS day,
			COUNT(DISTINCT user_id),
			COUNT(DISTINCT CASE WHEN event_type = 'purchase' AND completed = TRUE THEN user_id END)
		FROM conversion_events
		WHERE recorded_at >= $1
		GROUP BY day
		ORDER BY day DESC
	`, utc(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily conversions: %w", err)
	}
	defer rows.Close()

	results := []DailyCount{}
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Date, &d.Visitors, &d.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan daily conversion: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily conversions: %w", err)
	}
	return results, nil
}

func (s *EventStore) SummarizeRevenue(ctx context.Context) (RevenueSummary, error) {
	var r RevenueSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(revenue), 0), COALESCE(AVG(revenue), 0), COUNT(*)
		FROM conversion_events
		WHERE event_type = 'purchase' AND completed = TRUE AND revenue IS NOT NULL
	`).Scan(&r.Total, &r.Average, &r.Purchases)
	if err != nil {
		return r, fmt.Errorf("failed to summarize revenue: %w", err)
	}
	return r, nil
}

// SessionTimeline returns per-day session and churn counts for the most
// recent days that have sessions.
func (s *EventStore) SessionTimeline(ctx context.Context, limit int) ([]SessionDayCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			CAST(DATE(started_at) AS TEXT) AS day,
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_churned THEN 1 ELSE 0 END), 0)
		FROM sessions
		GROUP BY day
		ORDER BY day DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session timeline: %w", err)
	}
	defer rows.Close()

	results := []SessionDayCount{}
	for rows.Next() {
		var d SessionDayCount
		if err := rows.Scan(&d.Date, &d.Sessions, &d.Churned); err != nil {
			return nil, fmt.Errorf("failed to scan session day: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session timeline: %w", err)
	}
	return results, nil
}

// PageTransitions counts consecutive page pairs within a session.
func (s *EventStore) PageTransitions(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_page, to_page, COUNT(*) AS transitions
		FROM (
			SELECT
				page_path AS from_page,
				LEAD(page_path) OVER (PARTITION BY session_id ORDER BY recorded_at, id) AS to_page
			FROM activities
		) steps
		WHERE to_page IS NOT NULL
		GROUP BY from_page, to_page
		ORDER BY transitions DESC, from_page ASC, to_page ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query page transitions: %w", err)
	}
	defer rows.Close()

	results := []Transition{}
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.From, &t.To, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return results, nil
}
