package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Syncer commits candidate events with optimistic concurrency. On a
// version conflict it reloads only the events appended since the known
// version, re-folds, and re-runs the decision, bounded by a maximum
// attempt count. Appends whose outcome is unknown are surfaced as
// ErrAmbiguousAppend, never retried.
type Syncer[S any] struct {
	log         Log
	reader      *BatchReader
	codec       Codec
	handler     Handler[S]
	strategy    CompactionStrategy
	maxAttempts int
	obs         observer
}

func NewSyncer[S any](log Log, r *BatchReader, c Codec, h Handler[S], strategy CompactionStrategy, opts ...SyncerOption) (*Syncer[S], error) {
	if err := h.validate(strategy); err != nil {
		return nil, err
	}
	options := newSyncerOptions(opts...)
	if options.maxAttempts < 1 {
		return nil, errConfig("max attempts must be at least 1")
	}
	return &Syncer[S]{
		log:         log,
		reader:      r,
		codec:       c,
		handler:     h,
		strategy:    strategy,
		maxAttempts: options.maxAttempts,
		obs:         newObserver(options.log, options.category, options.metrics, options.trips),
	}, nil
}

// TrySync runs decide against cur and commits the resulting events with
// expectedVersion = cur.Token.StreamVersion. A decision yielding no events
// is a valid no-op: no append is issued and cur is returned unchanged.
func (y *Syncer[S]) TrySync(ctx context.Context, streamID string, cur StreamState[S], decide DecideFunc[S]) (StreamState[S], error) {
	defer y.obs.metrics.SyncDuration(y.obs.category).ObserveDuration()

	st := cur
	for attempt := 1; attempt <= y.maxAttempts; attempt++ {
		candidates, err := decide(st.Value)
		if err != nil {
			return st, err
		}
		if len(candidates) == 0 {
			return st, nil
		}

		newValue := y.handler.Fold(st.Value, candidates)

		events := make([]Event, 0, len(candidates)+1)
		next := st.Token.StreamVersion + 1
		for _, c := range candidates {
			ev, encErr := y.codec.Encode(c)
			if encErr != nil {
				return st, encErr
			}
			ev.Index = next
			next++
			events = append(events, ev)
		}

		unfoldIndex := EmptyVersion
		if y.unfoldDue(st.Token, next-1) {
			ev, unfErr := y.encodeUnfold(newValue, next)
			if unfErr != nil {
				return st, unfErr
			}
			events = append(events, ev)
			unfoldIndex = ev.Index
		}

		tail, err := y.log.Append(ctx, streamID, st.Token.StreamVersion, events)
		y.obs.trip(TripAppend, streamID, len(events))

		switch {
		case err == nil:
			token := Token{StreamVersion: tail, CompactionIndex: st.Token.CompactionIndex}
			if unfoldIndex > EmptyVersion {
				token.CompactionIndex = unfoldIndex
				y.obs.metrics.UnfoldEmitted(y.obs.category)
			}
			y.obs.metrics.EventsAppended(y.obs.category, len(events))
			y.obs.log.Debug(
				"synced",
				slog.String("stream", streamID),
				slog.Int("num_events", len(events)),
				slog.Int("attempt", attempt),
				token.slogGroup(),
			)
			return StreamState[S]{Token: token, Value: newValue}, nil

		case errors.Is(err, ErrVersionConflict):
			y.obs.conflict(streamID, attempt)
			st, err = y.reloadDelta(ctx, streamID, st)
			if err != nil {
				return st, err
			}

		default:
			// ambiguous appends and transport failures propagate unchanged
			return st, fmt.Errorf("failed to sync stream %q: %w", streamID, err)
		}
	}

	return st, fmt.Errorf("%w: stream %q after %d attempts", ErrConcurrencyLimitExceeded, streamID, y.maxAttempts)
}

// reloadDelta folds only the events appended since st's version onto the
// existing state. It never re-reads from genesis; that is what makes
// conflict recovery cheaper than a full reload.
func (y *Syncer[S]) reloadDelta(ctx context.Context, streamID string, st StreamState[S]) (StreamState[S], error) {
	it := y.reader.ReadBatches(streamID, Forward, st.Token.StreamVersion+1)
	for {
		b, ok, err := it.Next(ctx)
		if err != nil {
			return st, err
		}
		if !ok {
			return st, nil
		}
		st, err = foldEvents(y.handler, y.strategy, y.codec, st, b.Events)
		if err != nil {
			return st, err
		}
	}
}

// unfoldDue reports whether enough events accumulated past the last known
// resync point to warrant embedding a fresh unfold in the append.
func (y *Syncer[S]) unfoldDue(token Token, tailAfterAppend Version) bool {
	if y.strategy == nil || y.handler.Snapshot == nil {
		return false
	}
	every := y.strategy.UnfoldEvery()
	if every <= 0 {
		return false
	}
	return int(tailAfterAppend-token.CompactionIndex) >= every
}

func (y *Syncer[S]) encodeUnfold(value S, index Version) (Event, error) {
	ev, err := y.codec.Encode(y.handler.Snapshot(value))
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode unfold: %w", err)
	}
	ev.Index = index
	ev.Unfold = true
	ev.Meta, err = unfoldMetaFor(ev.Data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to build unfold meta: %w", err)
	}
	return ev, nil
}
