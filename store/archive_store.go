package store

import (
	"context"
	"fmt"

	"insightflow/api/database"
	"insightflow/api/logger"
	"insightflow/api/models"
)

const archiveTableDDL = `
	CREATE TABLE IF NOT EXISTS insightflow_events (
		event_id String,
		event_type LowCardinality(String),
		user_id String,
		session_id String,
		timestamp DateTime64(3, 'UTC'),
		page_path String,
		revenue Float64,
		event_data String
	) ENGINE = MergeTree
	ORDER BY (event_type, timestamp)
`

// ArchiveStore appends raw tracking records to ClickHouse for long-range
// analysis outside the event store.
type ArchiveStore struct {
	DB  *database.ClickHouseClient
	log *logger.Logger
}

func NewArchiveStore(chClient *database.ClickHouseClient, log *logger.Logger) *ArchiveStore {
	return &ArchiveStore{
		DB:  chClient,
		log: log.With("service", "ArchiveStore"),
	}
}

func (s *ArchiveStore) EnsureTable(ctx context.Context) error {
	if err := s.DB.Conn.Exec(ctx, archiveTableDDL); err != nil {
		return fmt.Errorf("failed to create archive table: %w", err)
	}
	return nil
}

func (s *ArchiveStore) InsertEvents(ctx context.Context, events []models.ArchivedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO insightflow_events (
			event_id, event_type, user_id, session_id, timestamp, page_path, revenue, event_data
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.EventType,
			event.UserID,
			event.SessionID,
			event.Timestamp,
			event.PagePath,
			event.Revenue,
			string(event.EventData),
		)
		if err != nil {
			s.log.Warn("Error appending event to batch", "event_id", event.EventID, "error", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.log.Debug("Archived events", "count", len(events))
	return nil
}
