package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

type RequestTiming struct {
	Route   string
	Latency time.Duration
	Cache   string // CacheHit, CacheMiss or empty when the route is uncached
}

type PerformanceSnapshot struct {
	Requests      int     `json:"requests"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	P95LatencyMs  float64 `json:"p95LatencyMs"`
	CacheHits     int     `json:"cacheHits"`
	CacheMisses   int     `json:"cacheMisses"`
	CacheHitRatio float64 `json:"cacheHitRatio"`
}

// TimingBuffer is a fixed-capacity ring of the most recent request timings.
// It lives and dies with the process.
type TimingBuffer struct {
	mu    sync.Mutex
	items []RequestTiming
	next  int
	full  bool
}

func NewTimingBuffer(capacity int) *TimingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &TimingBuffer{items: make([]RequestTiming, capacity)}
}

func (b *TimingBuffer) Record(t RequestTiming) {
	b.mu.Lock()
	b.items[b.next] = t
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

func (b *TimingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

func (b *TimingBuffer) Reset() {
	b.mu.Lock()
	b.next = 0
	b.full = false
	b.mu.Unlock()
}

func (b *TimingBuffer) Snapshot() PerformanceSnapshot {
	b.mu.Lock()
	n := b.next
	if b.full {
		n = len(b.items)
	}
	window := make([]RequestTiming, n)
	copy(window, b.items[:n])
	b.mu.Unlock()

	var snap PerformanceSnapshot
	snap.Requests = n
	if n == 0 {
		return snap
	}

	latencies := make([]float64, n)
	var sum float64
	for i, t := range window {
		ms := float64(t.Latency) / float64(time.Millisecond)
		latencies[i] = ms
		sum += ms
		switch t.Cache {
		case CacheHit:
			snap.CacheHits++
		case CacheMiss:
			snap.CacheMisses++
		}
	}
	sort.Float64s(latencies)
	snap.AvgLatencyMs = round2(sum / float64(n))
	idx := int(math.Ceil(0.95*float64(n))) - 1
	snap.P95LatencyMs = round2(latencies[idx])
	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRatio = round2(float64(snap.CacheHits) / float64(lookups))
	}
	return snap
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
