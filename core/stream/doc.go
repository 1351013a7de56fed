// Package stream is an event-sourcing persistence engine: it maintains the
// current state of an aggregate as a fold over an ordered, append-only
// sequence of events stored per logical stream, while minimizing the cost
// of reloading that state and safely resolving concurrent writers.
//
// # Core Components
//
// Log: the append-only log service the engine runs against, abstracted
// behind a three-method interface. [InMemoryLog] is a reference
// implementation for tests and development; adapters/nats binds the
// interface to NATS JetStream.
//
// Codec: a bidirectional mapping between a closed set of domain event
// variants and the transport [Event] record. [JSONCodec] routes on the
// event type name; unknown names decode to nil rather than failing, which
// keeps folds forward-compatible with schema evolution:
//
//	codec := stream.NewJSONCodec()
//	codec.Register(stream.Variant[ItemAdded](), stream.Variant[ItemRemoved]())
//
// BatchReader: lazy, direction-aware batch iteration over a stream's log,
// one round trip per batch.
//
// Loader: produces a fold-consistent (token, state) pair with the minimum
// number of round trips, using a [CompactionStrategy] to resume from the
// most recent resync point instead of replaying from genesis.
//
// Syncer: commits decisions with optimistic concurrency. Version conflicts
// are recovered locally by folding only the missed delta and re-running
// the decision, bounded by a configurable attempt budget.
//
// Service: the facade aggregates bind to:
//
//	svc, err := stream.NewService(log, codec, handler,
//	    stream.WithCategory("cart"),
//	    stream.WithCompaction(stream.CompactByEventType("cart_snapshotted", stream.WithUnfoldEvery(50))),
//	)
//	state, err := svc.Execute(ctx, "cart-123", AddItem("sku-1", 2))
//
// # Compaction
//
// Replay cost is bounded by periodically embedding a synthetic unfold
// event carrying already-folded state. Loads search backward from the tail
// for a resync point; a stream whose most recent batch contains one costs
// exactly one round trip to load, regardless of total event count.
//
// # Concurrency
//
// The engine holds no in-process locks across streams; the log service's
// atomic conditional append is the sole serialization point. Concurrent
// writers that observe a stale version each detect the conflict, reload
// the other's delta and retry, bounded by [WithMaxAttempts].
package stream
