package audiocache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	err   error
	audio []byte
	delay time.Duration
}

func (f *fakeBackend) Synthesize(ctx context.Context, text, language string, rate repositories.Rate) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.audio != nil {
		return f.audio, nil
	}
	return []byte("audio:" + language + ":" + string(rate) + ":" + text), nil
}

func (f *fakeBackend) Format() string { return "mp3" }

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingStore records every call made to the wrapped store.
type countingStore struct {
	Store
	ops atomic.Int64
}

func (c *countingStore) Exists(ctx context.Context, key Key) (bool, error) {
	c.ops.Add(1)
	return c.Store.Exists(ctx, key)
}

func (c *countingStore) Read(ctx context.Context, key Key) ([]byte, error) {
	c.ops.Add(1)
	return c.Store.Read(ctx, key)
}

func (c *countingStore) Write(ctx context.Context, key Key, data []byte) (Locator, error) {
	c.ops.Add(1)
	return c.Store.Write(ctx, key, data)
}

func newTestService(t *testing.T, backend *fakeBackend) (*Service, *countingStore) {
	t.Helper()
	store := &countingStore{Store: newTestFileStore(t)}
	svc := NewService(store, backend, ServiceConfig{Timeout: time.Second}, zaptest.NewLogger(t))
	return svc, store
}

func TestService_HelloWorldScenario(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, store := newTestService(t, backend)

	first, err := svc.Resolve(ctx, "Hello world", "en", repositories.RateNormal)
	require.NoError(t, err)
	assert.False(t, first.Hit)
	assert.Equal(t, 1, backend.Calls())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	second, err := svc.Resolve(ctx, "Hello world", "en", repositories.RateNormal)
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, 1, backend.Calls())
	assert.Equal(t, first.Locator, second.Locator)
}

func TestService_HitAvoidsBackend(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, store := newTestService(t, backend)

	key := ComputeKey("Cached answer", "en", repositories.RateNormal)
	_, err := store.Write(ctx, key, []byte("precomputed"))
	require.NoError(t, err)

	loc, err := svc.GetOrSynthesize(ctx, "Cached answer", "", "")
	require.NoError(t, err)
	assert.Equal(t, store.Locator(key), loc)
	assert.Equal(t, 0, backend.Calls())
}

func TestService_MissPopulatesStore(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{audio: []byte{0xFF, 0xFB, 0x90, 0x44}}
	svc, store := newTestService(t, backend)

	res, err := svc.Resolve(ctx, "Fresh text", "en", repositories.RateNormal)
	require.NoError(t, err)

	ok, err := store.Exists(ctx, res.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Read(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, backend.audio, data)

	data, err = svc.Bytes(ctx, "Fresh text", "en", repositories.RateNormal)
	require.NoError(t, err)
	assert.Equal(t, backend.audio, data)
	assert.Equal(t, 1, backend.Calls())
}

func TestService_EmptyInputShortCircuits(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, store := newTestService(t, backend)

	for _, text := range []string{"", "   ", "\n\t "} {
		loc, err := svc.GetOrSynthesize(ctx, text, "en", repositories.RateNormal)
		assert.ErrorIs(t, err, ErrEmptyText)
		assert.Empty(t, loc)

		_, ok := svc.TrySynthesize(ctx, text, "en", repositories.RateNormal)
		assert.False(t, ok)
	}

	assert.Equal(t, 0, backend.Calls())
	assert.Equal(t, int64(0), store.ops.Load())
}

func TestService_BackendFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{err: errors.New("quota exceeded")}
	svc, store := newTestService(t, backend)

	loc, err := svc.GetOrSynthesize(ctx, "Will fail", "en", repositories.RateNormal)
	assert.Empty(t, loc)
	assert.True(t, IsSynthesisError(err))
	assert.False(t, IsStorageError(err))

	var se *SynthesisError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "en", se.Language)
	assert.Equal(t, repositories.RateNormal, se.Rate)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	_, ok := svc.TrySynthesize(ctx, "Will fail", "en", repositories.RateNormal)
	assert.False(t, ok)
}

func TestService_EmptyAudioIsSynthesisError(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{audio: []byte{}}
	svc, store := newTestService(t, backend)

	_, err := svc.GetOrSynthesize(ctx, "Silent", "en", repositories.RateNormal)
	assert.True(t, IsSynthesisError(err))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestService_TimeoutIsSynthesisError(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{delay: time.Second}
	store := newTestFileStore(t)
	svc := NewService(store, backend, ServiceConfig{Timeout: 20 * time.Millisecond}, zaptest.NewLogger(t))

	_, err := svc.GetOrSynthesize(ctx, "Slow backend", "en", repositories.RateNormal)
	require.Error(t, err)
	assert.True(t, IsSynthesisError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestService_RateAndLanguageProduceDistinctEntries(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, store := newTestService(t, backend)

	normal, err := svc.GetOrSynthesize(ctx, "Hello", "en", repositories.RateNormal)
	require.NoError(t, err)
	slow, err := svc.GetOrSynthesize(ctx, "Hello", "en", repositories.RateSlow)
	require.NoError(t, err)
	french, err := svc.GetOrSynthesize(ctx, "Hello", "fr", repositories.RateNormal)
	require.NoError(t, err)

	assert.NotEqual(t, normal, slow)
	assert.NotEqual(t, normal, french)
	assert.Equal(t, 3, backend.Calls())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestService_DefaultsAndInvalidRate(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, _ := newTestService(t, backend)

	res, err := svc.Resolve(ctx, "Defaults", "", "")
	require.NoError(t, err)
	assert.Equal(t, ComputeKey("Defaults", DefaultLanguage, repositories.RateNormal), res.Key)

	_, err = svc.Resolve(ctx, "Defaults", "en", repositories.Rate("fast"))
	assert.True(t, IsSynthesisError(err))
	assert.Equal(t, 1, backend.Calls())
}

func TestService_ConcurrentMissesShareOneBackendCall(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{delay: 50 * time.Millisecond}
	svc, _ := newTestService(t, backend)

	const callers = 20
	locators := make([]Locator, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := svc.GetOrSynthesize(ctx, "Popular question", "en", repositories.RateNormal)
			assert.NoError(t, err)
			locators[i] = loc
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, backend.Calls())
	for _, loc := range locators {
		assert.Equal(t, locators[0], loc)
	}
}

func TestService_CancelledCallerDoesNotFailSharedMiss(t *testing.T) {
	backend := &fakeBackend{delay: 200 * time.Millisecond}
	svc, store := newTestService(t, backend)

	cancelled, cancel := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.GetOrSynthesize(cancelled, "Shared text", "en", repositories.RateNormal)
		errA <- err
	}()

	// Let the first caller start the flight before the second joins it.
	require.Eventually(t, func() bool { return backend.Calls() == 1 }, time.Second, 5*time.Millisecond)
	errB := make(chan error, 1)
	go func() {
		_, err := svc.GetOrSynthesize(context.Background(), "Shared text", "en", repositories.RateNormal)
		errB <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	err := <-errA
	require.Error(t, err)
	assert.True(t, IsSynthesisError(err))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, <-errB)
	assert.Equal(t, 1, backend.Calls())

	ok, err := store.Exists(context.Background(), ComputeKey("Shared text", "en", repositories.RateNormal))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_StatsAndClear(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, store := newTestService(t, backend)

	sizes := []int{1024 * 1024, 512 * 1024, 10 * 1024}
	var total uint64
	for i, n := range sizes {
		key := ComputeKey(string(rune('a'+i)), "en", repositories.RateNormal)
		_, err := store.Write(ctx, key, make([]byte, n))
		require.NoError(t, err)
		total += uint64(n)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(sizes)), stats.FileCount)
	assert.Equal(t, total, stats.TotalSizeBytes)
	assert.InDelta(t, float64(total)/(1024*1024), stats.TotalSizeMB, 0.005)
	assert.Equal(t, 1.51, stats.TotalSizeMB)

	removed, err := svc.ClearIfOver(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), removed)

	removed, err = svc.ClearIfOver(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), removed)

	_, err = svc.GetOrSynthesize(ctx, "after clear", "en", repositories.RateNormal)
	require.NoError(t, err)
	removed, err = svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), removed)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.FileCount)
	assert.Equal(t, 0.0, stats.TotalSizeMB)
	assert.Equal(t, uint64(1), stats.BackendCalls)
}

func TestService_ArtifactNeverCallsBackend(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, _ := newTestService(t, backend)

	_, err := svc.Artifact(ctx, ComputeKey("missing", "en", repositories.RateNormal))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Artifact(ctx, Key("not-a-key"))
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := svc.Resolve(ctx, "present", "en", repositories.RateNormal)
	require.NoError(t, err)
	data, err := svc.Artifact(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio:en:normal:present"), data)
	assert.Equal(t, 1, backend.Calls())
}

func TestBytesToMB(t *testing.T) {
	assert.Equal(t, 0.0, bytesToMB(0))
	assert.Equal(t, 1.0, bytesToMB(1024*1024))
	assert.Equal(t, 0.01, bytesToMB(10*1024))
	assert.Equal(t, 2.5, bytesToMB(5*512*1024))
}
