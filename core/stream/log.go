package stream

import (
	"context"
	"log/slog"
)

// Log is the append-only log service the engine runs against. It is the
// sole serialization point between concurrent writers: Append is atomic and
// conditioned on the expected version, everything else is client-side.
//
// Implementations: InMemoryLog for tests and development, adapters/nats for
// NATS JetStream.
type Log interface {
	// ReadForward returns up to maxCount events with Index >= from, in
	// ascending index order. Streams with no events yield
	// ErrStreamNotFound.
	ReadForward(ctx context.Context, streamID string, from Version, maxCount int) (Slice, error)

	// ReadBackward returns up to maxCount events with Index < before, in
	// ascending index order within the slice. A negative before reads from
	// the stream tail. Streams with no events yield ErrStreamNotFound.
	ReadBackward(ctx context.Context, streamID string, before Version, maxCount int) (Slice, error)

	// Append atomically appends events when the stream tail equals expect
	// (EmptyVersion for a stream expected to be empty) and returns the new
	// tail version. Event indices must already be assigned, contiguous
	// from expect+1. A mismatched tail yields ErrVersionConflict; an
	// append whose commit status is unknown yields ErrAmbiguousAppend.
	Append(ctx context.Context, streamID string, expect Version, events []Event) (Version, error)
}

// TripKind identifies one kind of log round trip for instrumentation.
type TripKind string

const (
	TripReadForward  TripKind = "read_forward"
	TripReadBackward TripKind = "read_backward"
	TripAppend       TripKind = "append"
)

// TripRecorder observes every log round trip the engine issues, plus
// detected version conflicts. Test harnesses use it to assert the exact
// sequence and count of round trips; production setups usually rely on
// StreamMetrics instead.
type TripRecorder interface {
	RecordTrip(kind TripKind, streamID string)
	RecordConflict(streamID string)
}

type nopTripRecorder struct{}

func (nopTripRecorder) RecordTrip(TripKind, string) {}
func (nopTripRecorder) RecordConflict(string)       {}

// observer bundles the per-trip instrumentation shared by the reader and
// the sync engine: one structured log record, one metrics observation and
// one recorder callback per round trip.
type observer struct {
	log      *slog.Logger
	category string
	metrics  StreamMetrics
	trips    TripRecorder
}

func newObserver(log *slog.Logger, category string, metrics StreamMetrics, trips TripRecorder) observer {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NopStreamMetrics()
	}
	if trips == nil {
		trips = nopTripRecorder{}
	}
	return observer{
		log:      log.With(slog.String("category", category)),
		category: category,
		metrics:  metrics,
		trips:    trips,
	}
}

func (o observer) trip(kind TripKind, streamID string, events int) {
	o.metrics.RoundTrip(o.category, kind)
	o.trips.RecordTrip(kind, streamID)
	o.log.Debug(
		"log round trip",
		slog.String("kind", string(kind)),
		slog.String("stream", streamID),
		slog.Int("events", events),
	)
}

func (o observer) conflict(streamID string, attempt int) {
	o.metrics.ConflictDetected(o.category)
	o.trips.RecordConflict(streamID)
	o.log.Debug(
		"conflict detected",
		slog.String("stream", streamID),
		slog.Int("attempt", attempt),
		slog.Bool("conflict", true),
	)
}
