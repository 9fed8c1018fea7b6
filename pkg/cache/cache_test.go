package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/cache"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return zerolog.New(zerolog.TestWriter{T: t}).Level(zerolog.TraceLevel).With().Str("test", t.Name()).Logger().WithContext(context.Background())
}

func TestGetOrComputeCachesValue(t *testing.T) {
	ctx := testContext(t)
	c := cache.New[int]("test")

	var calls atomic.Int32
	factory := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	v, err := c.GetOrCompute(ctx, "a", factory)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = c.GetOrCompute(ctx, "a", factory)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, int32(1), calls.Load())

	peeked, ok := c.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 1, peeked)
	assert.Equal(t, 1, c.Len())
}

func TestInvalidateRecomputes(t *testing.T) {
	ctx := testContext(t)
	c := cache.New[int]("test")

	var calls atomic.Int32
	factory := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	_, err := c.GetOrCompute(ctx, "a", factory)
	require.NoError(t, err)

	c.Invalidate("a")
	_, ok := c.Peek("a")
	assert.False(t, ok)

	v, err := c.GetOrCompute(ctx, "a", factory)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestErrorsAreNotCached(t *testing.T) {
	ctx := testContext(t)
	c := cache.New[string]("test")

	_, err := c.GetOrCompute(ctx, "a", func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, time.Millisecond)

	v, err := c.GetOrCompute(ctx, "a", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestConcurrentCallersShareComputation(t *testing.T) {
	ctx := testContext(t)
	c := cache.New[int]("test")

	release := make(chan struct{})
	var calls atomic.Int32
	factory := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(ctx, "k", factory)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestInvalidateDuringComputationServesNewerResult(t *testing.T) {
	ctx := testContext(t)
	c := cache.New[string]("test")

	release := make(chan struct{})
	oldDone := make(chan string)
	go func() {
		v, _ := c.GetOrCompute(ctx, "doc", func(ctx context.Context) (string, error) {
			<-release
			return "stale", nil
		})
		oldDone <- v
	}()

	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)
	c.Invalidate("doc")

	v, err := c.GetOrCompute(ctx, "doc", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	close(release)
	assert.Equal(t, "stale", <-oldDone)

	v, err = c.GetOrCompute(ctx, "doc", func(ctx context.Context) (string, error) {
		return "unused", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestWaitHonoursContext(t *testing.T) {
	c := cache.New[int]("test")
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	_, err := c.GetOrCompute(ctx, "k", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
