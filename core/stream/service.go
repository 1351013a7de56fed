package stream

import (
	"context"
	"log/slog"

	"github.com/Ma3yTa/equinox/core/cache"
	"github.com/Ma3yTa/equinox/core/sf"
)

// Service is the public facade combining loader, sync engine and codec
// behind Load, Read, Execute and TrySync. It is the seam domain aggregates
// bind to: one Service per aggregate category, generic over the folded
// state type.
type Service[S any] struct {
	log      *slog.Logger
	category string
	metrics  StreamMetrics
	loader   *Loader[S]
	syncer   *Syncer[S]
	states   cache.TypedCache[StreamState[S]]
	reads    sf.Group[StreamState[S]]
}

func NewService[S any](log Log, codec Codec, h Handler[S], opts ...ServiceOption) (*Service[S], error) {
	options := newServiceOptions(opts...)
	if err := h.validate(options.strategy); err != nil {
		return nil, err
	}

	shared := []ReaderOption{
		WithBatchSize(options.batchSize),
		WithCategory(options.category),
		WithTripRecorder(options.trips),
	}
	if options.log != nil {
		shared = append(shared, WithLogger(options.log))
	}
	if options.metrics != nil {
		shared = append(shared, WithMetrics(options.metrics))
	}
	reader := NewBatchReader(log, shared...)

	loader, err := NewLoader(reader, codec, h, options.strategy)
	if err != nil {
		return nil, err
	}

	syncerOpts := []SyncerOption{
		WithMaxAttempts(options.maxAttempts),
		WithCategory(options.category),
		WithTripRecorder(options.trips),
	}
	if options.log != nil {
		syncerOpts = append(syncerOpts, WithLogger(options.log))
	}
	if options.metrics != nil {
		syncerOpts = append(syncerOpts, WithMetrics(options.metrics))
	}
	syncer, err := NewSyncer(log, reader, codec, h, options.strategy, syncerOpts...)
	if err != nil {
		return nil, err
	}

	s := &Service[S]{
		log:      loader.obs.log,
		category: options.category,
		metrics:  loader.obs.metrics,
		loader:   loader,
		syncer:   syncer,
	}
	if options.states != nil {
		s.states = cache.NewTyped[StreamState[S]](options.states)
	}
	return s, nil
}

// Load reads the stream and returns a fold-consistent state together with
// the token it corresponds to.
func (s *Service[S]) Load(ctx context.Context, streamID string) (StreamState[S], error) {
	st, err := s.loader.Load(ctx, streamID)
	if err != nil {
		return st, err
	}
	s.cachePut(streamID, st)
	return st, nil
}

// Read returns the current folded state of the stream. Concurrent reads of
// the same stream are coalesced into a single load, which runs under the
// first caller's ctx: if that caller cancels, all joined readers receive
// the cancellation error.
func (s *Service[S]) Read(ctx context.Context, streamID string) (S, error) {
	st, err := s.reads.Do(streamID, func() (StreamState[S], error) {
		return s.Load(ctx, streamID)
	})
	if err != nil {
		var zero S
		return zero, err
	}
	return st.Value, nil
}

// Execute runs load + decide + sync-with-retry to completion or terminal
// failure and returns the resulting state. When a state cache is
// configured, the cached state serves as the starting point; a stale token
// self-corrects through the sync engine's conflict path.
func (s *Service[S]) Execute(ctx context.Context, streamID string, decide DecideFunc[S]) (S, error) {
	var zero S

	st, ok := s.cacheGet(streamID)
	if !ok {
		var err error
		st, err = s.loader.Load(ctx, streamID)
		if err != nil {
			return zero, err
		}
	}

	out, err := s.syncer.TrySync(ctx, streamID, st, decide)
	if err != nil {
		return zero, err
	}
	s.cachePut(streamID, out)
	return out.Value, nil
}

// TrySync runs one bounded sync against a state the caller already holds,
// returning the superseding StreamState.
func (s *Service[S]) TrySync(ctx context.Context, streamID string, cur StreamState[S], decide DecideFunc[S]) (StreamState[S], error) {
	out, err := s.syncer.TrySync(ctx, streamID, cur, decide)
	if err != nil {
		return out, err
	}
	s.cachePut(streamID, out)
	return out, nil
}

func (s *Service[S]) cacheGet(streamID string) (StreamState[S], bool) {
	if s.states == nil {
		return StreamState[S]{}, false
	}
	st, ok := s.states.Get(streamID)
	if ok {
		s.metrics.CacheHit(s.category)
	} else {
		s.metrics.CacheMiss(s.category)
	}
	return st, ok
}

// cachePut records st unless a newer state is already cached; a token
// never goes backwards within a read-modify-write flow.
func (s *Service[S]) cachePut(streamID string, st StreamState[S]) {
	if s.states == nil {
		return
	}
	if prev, ok := s.states.Get(streamID); ok && prev.Token.StreamVersion > st.Token.StreamVersion {
		return
	}
	s.states.Put(streamID, st)
}
