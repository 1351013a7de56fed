package stream

import (
	"context"
	"errors"
)

// BatchReader reads a stream's log in fixed-size slices, lazily, in either
// direction. Every Next call issues at most one log round trip, so a caller
// that stops consuming stops paying.
type BatchReader struct {
	log       Log
	batchSize int
	obs       observer
}

func NewBatchReader(log Log, opts ...ReaderOption) *BatchReader {
	options := newReaderOptions(opts...)
	return &BatchReader{
		log:       log,
		batchSize: options.batchSize,
		obs:       newObserver(options.log, options.category, options.metrics, options.trips),
	}
}

func (r *BatchReader) BatchSize() int { return r.batchSize }

// ReadBatches returns a lazy batch sequence over the given stream. Forward
// iteration starts at from and proceeds to increasing indices; backward
// iteration ignores from, starts at the stream tail and proceeds towards
// index 0. A stream with no events yields an empty sequence, not an error.
func (r *BatchReader) ReadBatches(streamID string, dir Direction, from Version) *BatchIterator {
	cursor := from
	if dir == Backward {
		cursor = EmptyVersion
	}
	return &BatchIterator{r: r, streamID: streamID, dir: dir, cursor: cursor}
}

// BatchIterator pages through a stream one log round trip per Next call.
// It is restartable in the sense that a fresh iterator can be created at
// any position; a single iterator is not safe for concurrent use.
type BatchIterator struct {
	r        *BatchReader
	streamID string
	dir      Direction
	cursor   Version
	done     bool
}

// Next fetches the next batch. It returns ok=false once the sequence is
// exhausted, without issuing further round trips on subsequent calls.
func (it *BatchIterator) Next(ctx context.Context) (Batch, bool, error) {
	if it.done {
		return Batch{}, false, nil
	}
	if it.dir == Backward {
		return it.nextBackward(ctx)
	}
	return it.nextForward(ctx)
}

func (it *BatchIterator) nextForward(ctx context.Context) (Batch, bool, error) {
	sl, err := it.r.log.ReadForward(ctx, it.streamID, it.cursor, it.r.batchSize)
	it.r.obs.trip(TripReadForward, it.streamID, len(sl.Events))
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			it.done = true
			return Batch{}, false, nil
		}
		return Batch{}, false, err
	}
	if len(sl.Events) == 0 {
		it.done = true
		return Batch{}, false, nil
	}

	it.cursor = sl.Events[len(sl.Events)-1].Index + 1
	if it.cursor > sl.Tail {
		it.done = true
	}
	return Batch{Events: sl.Events, Direction: Forward}, true, nil
}

func (it *BatchIterator) nextBackward(ctx context.Context) (Batch, bool, error) {
	sl, err := it.r.log.ReadBackward(ctx, it.streamID, it.cursor, it.r.batchSize)
	it.r.obs.trip(TripReadBackward, it.streamID, len(sl.Events))
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			it.done = true
			return Batch{}, false, nil
		}
		return Batch{}, false, err
	}
	if len(sl.Events) == 0 {
		it.done = true
		return Batch{}, false, nil
	}

	it.cursor = sl.Events[0].Index
	if it.cursor == 0 {
		it.done = true
	}
	return Batch{Events: sl.Events, Direction: Backward}, true, nil
}
