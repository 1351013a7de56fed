package stream

import "github.com/Ma3yTa/equinox/core/metrics"

// StreamMetrics defines the metrics surface of the engine. One observation
// is emitted per log round trip; conflicts and unfolds are counted as they
// are detected or emitted. Implementations must be safe for concurrent
// use.
type StreamMetrics interface {
	// RoundTrip counts one log service round trip of the given kind.
	RoundTrip(category string, kind TripKind)

	// Loads
	LoadDuration(category string) metrics.Timer
	EventsLoaded(category string, count int)

	// Syncs
	SyncDuration(category string) metrics.Timer
	EventsAppended(category string, count int)
	ConflictDetected(category string)
	UnfoldEmitted(category string)

	// State cache
	CacheHit(category string)
	CacheMiss(category string)
}

type nopStreamMetrics struct{}

func (nopStreamMetrics) RoundTrip(string, TripKind)            {}
func (nopStreamMetrics) LoadDuration(string) metrics.Timer     { return metrics.NopTimer() }
func (nopStreamMetrics) EventsLoaded(string, int)              {}
func (nopStreamMetrics) SyncDuration(string) metrics.Timer     { return metrics.NopTimer() }
func (nopStreamMetrics) EventsAppended(string, int)            {}
func (nopStreamMetrics) ConflictDetected(string)               {}
func (nopStreamMetrics) UnfoldEmitted(string)                  {}
func (nopStreamMetrics) CacheHit(string)                       {}
func (nopStreamMetrics) CacheMiss(string)                      {}

// NopStreamMetrics returns a no-op StreamMetrics implementation.
func NopStreamMetrics() StreamMetrics { return nopStreamMetrics{} }
