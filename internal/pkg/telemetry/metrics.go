package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Data freshness
	MetricSnapshotFreshness = "spots.snapshot_age_seconds"
	MetricPositionLatency   = "live.position_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricSpotsCreated   = "business.spots_created"
	MetricSpotsConfirmed = "business.spots_confirmed"
)
