// Package cache holds derived metrics snapshots in a key-value side store.
// The event store stays the source of truth; callers treat every error here
// as a miss.
package cache

import (
	"context"
	"time"
)

const (
	KeyJourneyMetrics    = "journey_metrics"
	KeyConversionMetrics = "conversion_metrics"
)

type Cache interface {
	// Get decodes the entry into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
