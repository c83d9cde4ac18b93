package models

import "time"

// SystemMetrics is a lightweight snapshot of runtime counters exposed on the
// admin status endpoint, alongside the Prometheus scrape surface.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	JourneysDelegated        uint64    `json:"journeys_delegated"`
	JourneysFallback         uint64    `json:"journeys_fallback"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
