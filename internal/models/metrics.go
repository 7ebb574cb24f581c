package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot exposed on the admin
// dashboard endpoint. Prometheus scrapes get the full registry instead.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	GeneratorRuns            uint64    `json:"generator_runs"`
	ProposalsCommitted       uint64    `json:"proposals_committed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
