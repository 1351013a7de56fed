package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ma3yTa/equinox/core/metrics"
	"github.com/Ma3yTa/equinox/core/stream"
)

// streamMetrics implements stream.StreamMetrics using Prometheus.
type streamMetrics struct {
	roundTrips *prometheus.CounterVec

	loadDuration *prometheus.HistogramVec
	eventsLoaded *prometheus.CounterVec

	syncDuration   *prometheus.HistogramVec
	eventsAppended *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	unfolds        *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// NewStreamMetrics creates a Prometheus implementation of StreamMetrics.
func NewStreamMetrics(reg prometheus.Registerer) stream.StreamMetrics {
	m := &streamMetrics{
		roundTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_round_trips_total",
			Help: "Total number of log service round trips",
		}, []string{"category", "kind"}),

		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "equinox_stream_load_duration_seconds",
			Help:    "Stream load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"category"}),

		eventsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_events_loaded_total",
			Help: "Total number of events folded during loads",
		}, []string{"category"}),

		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "equinox_stream_sync_duration_seconds",
			Help:    "Sync latency in seconds, including conflict retries",
			Buckets: defaultBuckets,
		}, []string{"category"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"category"}),

		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		}, []string{"category"}),

		unfolds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_unfolds_emitted_total",
			Help: "Total number of unfold events emitted",
		}, []string{"category"}),

		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_cache_hits_total",
			Help: "Total number of state cache hits",
		}, []string{"category"}),

		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_stream_cache_misses_total",
			Help: "Total number of state cache misses",
		}, []string{"category"}),
	}

	reg.MustRegister(
		m.roundTrips,
		m.loadDuration,
		m.eventsLoaded,
		m.syncDuration,
		m.eventsAppended,
		m.conflicts,
		m.unfolds,
		m.cacheHits,
		m.cacheMisses,
	)

	return m
}

func (m *streamMetrics) RoundTrip(category string, kind stream.TripKind) {
	m.roundTrips.WithLabelValues(category, string(kind)).Inc()
}

func (m *streamMetrics) LoadDuration(category string) metrics.Timer {
	return newTimer(m.loadDuration.WithLabelValues(category))
}

func (m *streamMetrics) EventsLoaded(category string, count int) {
	m.eventsLoaded.WithLabelValues(category).Add(float64(count))
}

func (m *streamMetrics) SyncDuration(category string) metrics.Timer {
	return newTimer(m.syncDuration.WithLabelValues(category))
}

func (m *streamMetrics) EventsAppended(category string, count int) {
	m.eventsAppended.WithLabelValues(category).Add(float64(count))
}

func (m *streamMetrics) ConflictDetected(category string) {
	m.conflicts.WithLabelValues(category).Inc()
}

func (m *streamMetrics) UnfoldEmitted(category string) {
	m.unfolds.WithLabelValues(category).Inc()
}

func (m *streamMetrics) CacheHit(category string) {
	m.cacheHits.WithLabelValues(category).Inc()
}

func (m *streamMetrics) CacheMiss(category string) {
	m.cacheMisses.WithLabelValues(category).Inc()
}

var _ stream.StreamMetrics = (*streamMetrics)(nil)
