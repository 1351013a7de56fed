package stream

import (
	"context"
	"fmt"
	"log/slog"
)

// Loader orchestrates the batch reader and the compaction strategy to
// produce a fold-consistent (token, state) pair with the minimum number of
// log round trips: a stream whose most recent batch contains a resync point
// costs exactly one backward round trip regardless of total event count.
type Loader[S any] struct {
	reader   *BatchReader
	codec    Codec
	handler  Handler[S]
	strategy CompactionStrategy
	obs      observer
}

func NewLoader[S any](r *BatchReader, c Codec, h Handler[S], strategy CompactionStrategy) (*Loader[S], error) {
	if err := h.validate(strategy); err != nil {
		return nil, err
	}
	return &Loader[S]{reader: r, codec: c, handler: h, strategy: strategy, obs: r.obs}, nil
}

// Load produces the current state of the stream. With no compaction
// strategy it folds forward from index 0; otherwise it searches backward
// from the tail for a resync point and falls back to a forward read when
// the look-back window is exhausted without finding one.
func (l *Loader[S]) Load(ctx context.Context, streamID string) (StreamState[S], error) {
	defer l.obs.metrics.LoadDuration(l.obs.category).ObserveDuration()

	if l.strategy == nil {
		return l.loadForward(ctx, streamID)
	}
	return l.loadBackward(ctx, streamID)
}

func (l *Loader[S]) loadForward(ctx context.Context, streamID string) (StreamState[S], error) {
	st := emptyState(l.handler)

	var loaded int
	it := l.reader.ReadBatches(streamID, Forward, 0)
	for {
		b, ok, err := it.Next(ctx)
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}
		loaded += len(b.Events)
		st, err = foldEvents(l.handler, l.strategy, l.codec, st, b.Events)
		if err != nil {
			return st, err
		}
	}

	l.obs.metrics.EventsLoaded(l.obs.category, loaded)
	l.obs.log.Debug(
		"loaded",
		slog.String("stream", streamID),
		slog.Int("events", loaded),
		st.Token.slogGroup(),
	)
	return st, nil
}

func (l *Loader[S]) loadBackward(ctx context.Context, streamID string) (StreamState[S], error) {
	var (
		buffered []Batch // newest batch first
		scanned  int
		lookback = l.strategy.Lookback()
	)

	it := l.reader.ReadBatches(streamID, Backward, EmptyVersion)
search:
	for {
		b, ok, err := it.Next(ctx)
		if err != nil {
			return emptyState(l.handler), err
		}
		if !ok {
			break
		}
		buffered = append(buffered, b)

		// scan newest first within the batch
		for i := len(b.Events) - 1; i >= 0; i-- {
			if l.strategy.IsResyncPoint(b.Events[i]) {
				return l.resumeFrom(streamID, buffered, len(buffered)-1, i)
			}
			scanned++
			if lookback > 0 && scanned >= lookback {
				break search
			}
		}
	}

	// no resync point within the window, concede and fold from genesis
	l.obs.log.Debug(
		"no resync point, falling back to forward read",
		slog.String("stream", streamID),
		slog.Int("scanned", scanned),
	)
	return l.loadForward(ctx, streamID)
}

// resumeFrom seeds state from the resync point at buffered[bi].Events[ei]
// and folds forward through the newer events already buffered by the
// backward sweep. No further round trips are issued.
func (l *Loader[S]) resumeFrom(streamID string, buffered []Batch, bi, ei int) (StreamState[S], error) {
	seed := buffered[bi].Events[ei]
	st := StreamState[S]{Token: Token{StreamVersion: seed.Index, CompactionIndex: seed.Index}}

	v, err := l.codec.TryDecode(seed)
	if err != nil {
		return st, err
	}
	if v == nil {
		return st, fmt.Errorf("resync point %s at index %d is not decodable", seed.Type, seed.Index)
	}

	if seed.Unfold {
		if err := verifyUnfold(seed); err != nil {
			return st, err
		}
		adopted, ok := l.handler.Adopt(v)
		if !ok {
			return st, fmt.Errorf("cannot adopt unfold event %s at index %d", seed.Type, seed.Index)
		}
		st.Value = adopted
	} else {
		st.Value = l.handler.Fold(l.handler.Initial(), []any{v})
	}

	loaded := 1
	rest := buffered[bi].Events[ei+1:]
	st, err = foldEvents(l.handler, l.strategy, l.codec, st, rest)
	if err != nil {
		return st, err
	}
	loaded += len(rest)
	for j := bi - 1; j >= 0; j-- {
		st, err = foldEvents(l.handler, l.strategy, l.codec, st, buffered[j].Events)
		if err != nil {
			return st, err
		}
		loaded += len(buffered[j].Events)
	}

	l.obs.metrics.EventsLoaded(l.obs.category, loaded)
	l.obs.log.Debug(
		"loaded from resync point",
		slog.String("stream", streamID),
		seed.Index.SlogAttrWithKey("resync_index"),
		slog.Int("events", loaded),
		st.Token.slogGroup(),
	)
	return st, nil
}

func emptyState[S any](h Handler[S]) StreamState[S] {
	return StreamState[S]{
		Token: Token{StreamVersion: EmptyVersion, CompactionIndex: EmptyVersion},
		Value: h.Initial(),
	}
}

// foldEvents advances st through events, which must be in ascending index
// order. Unfold events and events the codec does not recognize advance the
// token without reaching Fold; resync points move the compaction index.
func foldEvents[S any](h Handler[S], strategy CompactionStrategy, codec Codec, st StreamState[S], events []Event) (StreamState[S], error) {
	var decoded []any
	for _, ev := range events {
		if strategy != nil && strategy.IsResyncPoint(ev) && ev.Index > st.Token.CompactionIndex {
			st.Token.CompactionIndex = ev.Index
		}
		st.Token.StreamVersion = ev.Index
		if ev.Unfold {
			continue
		}
		v, err := codec.TryDecode(ev)
		if err != nil {
			return st, err
		}
		if v == nil {
			// unknown event type, skipped for forward compatibility
			continue
		}
		decoded = append(decoded, v)
	}
	if len(decoded) > 0 {
		st.Value = h.Fold(st.Value, decoded)
	}
	return st, nil
}
