package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DetectChurn flags the latest ended session of every user who has not
// started a session after cutoff.
func (s *EventStore) DetectChurn(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET is_churned = TRUE
		WHERE id IN (
			SELECT s1.id
			FROM sessions s1
			WHERE s1.is_churned = FALSE
			AND s1.ended_at IS NOT NULL
			AND NOT EXISTS (
				SELECT 1 FROM sessions s2
				WHERE s2.user_id = s1.user_id
				AND s2.started_at > $1
			)
			AND s1.id = (
				SELECT s3.id FROM sessions s3
				WHERE s3.user_id = s1.user_id
				ORDER BY s3.started_at DESC, s3.id DESC
				LIMIT 1
			)
		)
	`, utc(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to detect churn: %w", err)
	}
	return res.RowsAffected()
}

// DetectDropoffs flags the last activity of every ended session whose user
// made no completed purchase during that session.
func (s *EventStore) DetectDropoffs(ctx context.Context, confirmationPath string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET drop_off = TRUE
		WHERE id IN (
			SELECT a.id
			FROM activities a
			JOIN sessions s ON a.session_id = s.id
			WHERE s.ended_at IS NOT NULL
			AND a.drop_off = FALSE
			AND a.page_path <> $1
			AND a.id = (
				SELECT a2.id FROM activities a2
				WHERE a2.session_id = a.session_id
				ORDER BY a2.recorded_at DESC, a2.id DESC
				LIMIT 1
			)
			AND NOT EXISTS (
				SELECT 1 FROM conversion_events ce
				WHERE ce.user_id = s.user_id
				AND ce.event_type = 'purchase'
				AND ce.completed = TRUE
				AND ce.recorded_at >= s.started_at
				AND ce.recorded_at <= s.ended_at
			)
		)
	`, confirmationPath)
	if err != nil {
		return 0, fmt.Errorf("failed to detect drop-offs: %w", err)
	}
	return res.RowsAffected()
}

type funnelCounts struct {
	entered, completed, dropped int64
}

// ReconcileFunnel rebuilds every rollup row from raw conversion events and
// returns how many rows were corrected. Rows already in agreement are left
// alone, so a second run reports zero.
func (s *EventStore) ReconcileFunnel(ctx context.Context, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}
	defer tx.Rollback()

	want, err := queryFunnelCounts(ctx, tx, `
		SELECT funnel_step,
			COUNT(*),
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN completed THEN 0 ELSE 1 END), 0)
		FROM conversion_events
		GROUP BY funnel_step
	`)
	if err != nil {
		return 0, err
	}
	have, err := queryFunnelCounts(ctx, tx, `
		SELECT step_order, users_entered, users_completed, drop_off_count
		FROM funnel_steps
	`)
	if err != nil {
		return 0, err
	}
	for step := range have {
		if _, ok := want[step]; !ok {
			want[step] = funnelCounts{}
		}
	}

	var corrected int64
	for step, counts := range want {
		if current, ok := have[step]; ok && current == counts {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO funnel_steps (step_order, step_name, users_entered, users_completed, drop_off_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (step_order) DO UPDATE SET
				users_entered = excluded.users_entered,
				users_completed = excluded.users_completed,
				drop_off_count = excluded.drop_off_count,
				updated_at = excluded.updated_at
		`, step, fmt.Sprintf("Step %d", step), counts.entered, counts.completed, counts.dropped, utc(at))
		if err != nil {
			return 0, fmt.Errorf("failed to reconcile funnel step %d: %w", step, err)
		}
		corrected++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit funnel reconciliation: %w", err)
	}
	return corrected, nil
}

func queryFunnelCounts(ctx context.Context, tx *sql.Tx, query string) (map[int]funnelCounts, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel counts: %w", err)
	}
	defer rows.Close()

	out := make(map[int]funnelCounts)
	for rows.Next() {
		var step int
		var c funnelCounts
		if err := rows.Scan(&step, &c.entered, &c.completed, &c.dropped); err != nil {
			return nil, fmt.Errorf("failed to scan funnel counts: %w", err)
		}
		out[step] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funnel counts: %w", err)
	}
	return out, nil
}
