package stream

import (
	"log/slog"

	"github.com/Ma3yTa/equinox/core/cache"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 3
	defaultCategory    = "stream"
)

type (
	readerOptions struct {
		batchSize int
		category  string
		log       *slog.Logger
		metrics   StreamMetrics
		trips     TripRecorder
	}

	syncerOptions struct {
		maxAttempts int
		category    string
		log         *slog.Logger
		metrics     StreamMetrics
		trips       TripRecorder
	}

	serviceOptions struct {
		batchSize   int
		maxAttempts int
		category    string
		log         *slog.Logger
		metrics     StreamMetrics
		trips       TripRecorder
		strategy    CompactionStrategy
		states      cache.Cache
	}

	ReaderOption interface{ applyToReader(*readerOptions) }
	SyncerOption interface{ applyToSyncer(*syncerOptions) }
	// ServiceOption configures a Service. Most options also apply to the
	// standalone reader and syncer.
	ServiceOption interface{ applyToService(*serviceOptions) }
)

func newReaderOptions(opts ...ReaderOption) readerOptions {
	o := readerOptions{batchSize: defaultBatchSize, category: defaultCategory}
	for _, opt := range opts {
		opt.applyToReader(&o)
	}
	return o
}

func newSyncerOptions(opts ...SyncerOption) syncerOptions {
	o := syncerOptions{maxAttempts: defaultMaxAttempts, category: defaultCategory}
	for _, opt := range opts {
		opt.applyToSyncer(&o)
	}
	return o
}

func newServiceOptions(opts ...ServiceOption) serviceOptions {
	o := serviceOptions{
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		category:    defaultCategory,
	}
	for _, opt := range opts {
		opt.applyToService(&o)
	}
	return o
}

// === shared option values ===

type loggerOption struct{ l *slog.Logger }

func (o loggerOption) applyToReader(r *readerOptions)   { r.log = o.l }
func (o loggerOption) applyToSyncer(s *syncerOptions)   { s.log = o.l }
func (o loggerOption) applyToService(s *serviceOptions) { s.log = o.l }

// WithLogger sets the slog logger used for structured diagnostics.
func WithLogger(l *slog.Logger) loggerOption { return loggerOption{l} }

type metricsOption struct{ m StreamMetrics }

func (o metricsOption) applyToReader(r *readerOptions)   { r.metrics = o.m }
func (o metricsOption) applyToSyncer(s *syncerOptions)   { s.metrics = o.m }
func (o metricsOption) applyToService(s *serviceOptions) { s.metrics = o.m }

// WithMetrics sets the metrics implementation.
func WithMetrics(m StreamMetrics) metricsOption { return metricsOption{m} }

type tripRecorderOption struct{ r TripRecorder }

func (o tripRecorderOption) applyToReader(r *readerOptions)   { r.trips = o.r }
func (o tripRecorderOption) applyToSyncer(s *syncerOptions)   { s.trips = o.r }
func (o tripRecorderOption) applyToService(s *serviceOptions) { s.trips = o.r }

// WithTripRecorder installs a hook observing every log round trip.
func WithTripRecorder(r TripRecorder) tripRecorderOption { return tripRecorderOption{r} }

type categoryOption struct{ name string }

func (o categoryOption) applyToReader(r *readerOptions)   { r.category = o.name }
func (o categoryOption) applyToSyncer(s *syncerOptions)   { s.category = o.name }
func (o categoryOption) applyToService(s *serviceOptions) { s.category = o.name }

// WithCategory names the aggregate category for logging and metric labels.
func WithCategory(name string) categoryOption { return categoryOption{name} }

type batchSizeOption struct{ n int }

func (o batchSizeOption) applyToReader(r *readerOptions)   { r.batchSize = o.n }
func (o batchSizeOption) applyToService(s *serviceOptions) { s.batchSize = o.n }

// WithBatchSize sets the number of events fetched per log round trip.
func WithBatchSize(n int) batchSizeOption { return batchSizeOption{n} }

type maxAttemptsOption struct{ n int }

func (o maxAttemptsOption) applyToSyncer(s *syncerOptions)   { s.maxAttempts = o.n }
func (o maxAttemptsOption) applyToService(s *serviceOptions) { s.maxAttempts = o.n }

// WithMaxAttempts bounds the sync engine's conflict retry loop.
func WithMaxAttempts(n int) maxAttemptsOption { return maxAttemptsOption{n} }

// === service-only options ===

type compactionStrategyOption struct{ s CompactionStrategy }

func (o compactionStrategyOption) applyToService(s *serviceOptions) { s.strategy = o.s }

// WithCompaction sets the compaction strategy. Without it every load folds
// forward from the start of the stream.
func WithCompaction(s CompactionStrategy) compactionStrategyOption {
	return compactionStrategyOption{s}
}

type stateCacheOption struct{ c cache.Cache }

func (o stateCacheOption) applyToService(s *serviceOptions) { s.states = o.c }

// WithStateCache caches the most recent StreamState per stream. Execute
// starts from the cached state when present; a stale token self-corrects
// through the conflict path.
func WithStateCache(c cache.Cache) stateCacheOption { return stateCacheOption{c} }
