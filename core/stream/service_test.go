package stream_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ma3yTa/equinox/core/cache"
	"github.com/Ma3yTa/equinox/core/stream"
)

func newCartService(t *testing.T, log stream.Log, opts ...stream.ServiceOption) *stream.Service[cartState] {
	t.Helper()
	s, err := stream.NewService(log, cartCodec(), cartHandler(), opts...)
	require.NoError(t, err)
	return s
}

func TestService_ExecuteOnEmptyStream(t *testing.T) {
	log := stream.NewInMemoryLog()
	rec := &recorder{}
	s := newCartService(t, log, stream.WithTripRecorder(rec))

	v, err := s.Execute(context.Background(), "cart-1", addItem("sku-1", 2))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"sku-1": 2}, v.Items)

	// one read to establish the (empty) state, one append
	require.Equal(t, []stream.TripKind{stream.TripReadForward, stream.TripAppend}, rec.Trips())
}

func TestService_LoadFoldsHistory(t *testing.T) {
	log := stream.NewInMemoryLog()
	seedCart(t, log, "cart-1", stream.EmptyVersion, cartHistory()...)

	rec := &recorder{}
	s := newCartService(t, log, stream.WithBatchSize(3), stream.WithTripRecorder(rec))

	st, err := s.Load(context.Background(), "cart-1")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"sku-1": 6}, st.Value.Items)
	require.Equal(t, stream.Version(10), st.Token.StreamVersion)
	require.Len(t, rec.Trips(), 4)
}

func TestService_NoopExecute(t *testing.T) {
	log := stream.NewInMemoryLog()
	rec := &recorder{}
	s := newCartService(t, log, stream.WithTripRecorder(rec))

	v, err := s.Execute(context.Background(), "cart-1", removeItem("sku-1"))
	require.NoError(t, err)
	require.Empty(t, v.Items)

	// nothing to commit, the load is the only round trip
	require.Equal(t, []stream.TripKind{stream.TripReadForward}, rec.Trips())
}

// gatedLog blocks every forward read until released, so the test can prove
// two concurrent reads collapse into one underlying load.
type gatedLog struct {
	stream.Log

	started chan struct{}
	release chan struct{}

	once  sync.Once
	mu    sync.Mutex
	reads int
}

func (g *gatedLog) ReadForward(ctx context.Context, streamID string, from stream.Version, maxCount int) (stream.Slice, error) {
	g.mu.Lock()
	g.reads++
	g.mu.Unlock()
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Log.ReadForward(ctx, streamID, from, maxCount)
}

func (g *gatedLog) forwardReads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads
}

func TestService_ReadCoalescesConcurrentLoads(t *testing.T) {
	inner := stream.NewInMemoryLog()
	seedCart(t, inner, "cart-1", stream.EmptyVersion, cartHistory()...)

	log := &gatedLog{
		Log:     inner,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newCartService(t, log)

	var wg sync.WaitGroup
	results := make([]map[string]int, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Read(context.Background(), "cart-1")
			results[i], errs[i] = v.Items, err
		}(i)
	}

	<-log.started
	time.Sleep(50 * time.Millisecond) // let the second Read join the flight
	close(log.release)
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, map[string]int{"sku-1": 6}, results[i])
	}
	require.Equal(t, 1, log.forwardReads())
}

func TestService_StateCacheSkipsReload(t *testing.T) {
	log := stream.NewInMemoryLog()
	rec := &recorder{}
	s := newCartService(t, log,
		stream.WithTripRecorder(rec),
		stream.WithStateCache(cache.NewLRU(cache.LRUOpts{Size: 16})),
	)
	ctx := context.Background()

	v, err := s.Execute(ctx, "cart-1", addItem("sku-1", 1))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"sku-1": 1}, v.Items)
	require.Equal(t, []stream.TripKind{stream.TripReadForward, stream.TripAppend}, rec.Trips())

	rec.Reset()

	// the cached state carries the token, the second command appends without
	// re-reading the stream
	v, err = s.Execute(ctx, "cart-1", addItem("sku-2", 1))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"sku-1": 1, "sku-2": 1}, v.Items)
	require.Equal(t, []stream.TripKind{stream.TripAppend}, rec.Trips())
}

func TestService_StaleCacheSelfCorrects(t *testing.T) {
	log := stream.NewInMemoryLog()
	rec := &recorder{}
	s := newCartService(t, log,
		stream.WithTripRecorder(rec),
		stream.WithStateCache(cache.NewLRU(cache.LRUOpts{Size: 16})),
	)
	ctx := context.Background()

	_, err := s.Execute(ctx, "cart-1", addItem("sku-1", 1))
	require.NoError(t, err)

	// another writer moves the stream past the cached token
	seedCart(t, log, "cart-1", 0, &itemAdded{SKU: "sku-9", Qty: 5})

	rec.Reset()
	v, err := s.Execute(ctx, "cart-1", addItem("sku-2", 1))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"sku-1": 1, "sku-9": 5, "sku-2": 1}, v.Items)

	// stale append, delta reload, successful retry
	require.Equal(t, []stream.TripKind{
		stream.TripAppend,
		stream.TripReadForward,
		stream.TripAppend,
	}, rec.Trips())
	require.Equal(t, 1, rec.Conflicts())
}

func TestService_TrySyncReturnsSupersedingState(t *testing.T) {
	log := stream.NewInMemoryLog()
	s := newCartService(t, log)
	ctx := context.Background()

	st, err := s.Load(ctx, "cart-1")
	require.NoError(t, err)

	st, err = s.TrySync(ctx, "cart-1", st, addItem("sku-1", 3))
	require.NoError(t, err)
	require.Equal(t, stream.Version(0), st.Token.StreamVersion)
	require.Equal(t, map[string]int{"sku-1": 3}, st.Value.Items)
}

func TestService_CompactedLifecycle(t *testing.T) {
	log := stream.NewInMemoryLog()
	rec := &recorder{}
	strategy := stream.CompactByEventType("cart_snapshotted",
		stream.WithUnfoldEvery(4),
		stream.WithLookback(100),
	)
	s := newCartService(t, log,
		stream.WithCompaction(strategy),
		stream.WithCategory("cart"),
		stream.WithTripRecorder(rec),
	)
	ctx := context.Background()

	// four commands cross the unfold threshold on the fourth append
	for i, sku := range []string{"a", "b", "c", "d"} {
		_, err := s.Execute(ctx, "cart-"+t.Name(), addItem("sku-"+sku, i+1))
		require.NoError(t, err)
	}

	rec.Reset()
	st, err := s.Load(ctx, "cart-"+t.Name())
	require.NoError(t, err)
	require.Equal(t, map[string]int{"sku-a": 1, "sku-b": 2, "sku-c": 3, "sku-d": 4}, st.Value.Items)
	require.Equal(t, stream.Version(4), st.Token.StreamVersion)
	require.Equal(t, stream.Version(4), st.Token.CompactionIndex)

	// the unfold at the tail makes the reload a single round trip
	require.Equal(t, []stream.TripKind{stream.TripReadBackward}, rec.Trips())
}
