package models

import (
	"encoding/json"
	"time"
)

// ArchivedEvent is the flattened row mirrored into the ClickHouse archive.
type ArchivedEvent struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	PagePath  string          `json:"pagePath"`
	Revenue   float64         `json:"revenue"`
	EventData json.RawMessage `json:"eventData,omitempty"`
}
