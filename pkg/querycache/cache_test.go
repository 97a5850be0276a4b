package querycache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("books/b1"), KeyBook("b1"))
	assert.True(t, KeyBook("b1").HasPrefix(KeyBooks))
	assert.True(t, KeyBooks.HasPrefix(KeyBooks))
	assert.False(t, NewKey("bookshelf").HasPrefix(KeyBooks))
	assert.False(t, KeyBooks.HasPrefix(KeyBook("b1")))
}

func TestCacheFetch_FreshHitSkipsFetch(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls int32

	fn := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	v, err := Fetch(ctx, c, KeyCredits, time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Fetch(ctx, c, KeyCredits, time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheFetch_StaleRefetches(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls int32

	fn := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	v, err := Fetch(ctx, c, KeyCredits, 0, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// staleAfter of zero means always refetch.
	v, err = Fetch(ctx, c, KeyCredits, 0, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCacheFetch_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls int32

	fn := func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, errors.New("boom")
		}
		return 7, nil
	}

	_, err := Fetch(ctx, c, KeyCredits, time.Minute, fn)
	require.Error(t, err)

	v, err := Fetch(ctx, c, KeyCredits, time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCacheFetch_DeduplicatesConcurrentReads(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls int32

	fn := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return 9, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(ctx, c, KeyBook("b1"), time.Minute, fn)
			assert.NoError(t, err)
			assert.Equal(t, 9, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls int32

	fn := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	_, err := Fetch(ctx, c, KeyBook("b1"), time.Minute, fn)
	require.NoError(t, err)

	c.Invalidate(KeyBook("b1"))

	v, err := Fetch(ctx, c, KeyBook("b1"), time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCacheInvalidatePrefix(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	for _, key := range []Key{KeyBooks, KeyBook("b1"), KeyBook("b2"), KeyCredits} {
		key := key
		_, err := c.Fetch(ctx, key, time.Minute, func(ctx context.Context) (interface{}, error) {
			return string(key), nil
		})
		require.NoError(t, err)
	}

	c.InvalidatePrefix(KeyBooks)

	_, ok := c.Peek(KeyBooks)
	assert.False(t, ok)
	_, ok = c.Peek(KeyBook("b1"))
	assert.False(t, ok)
	_, ok = c.Peek(KeyBook("b2"))
	assert.False(t, ok)
	// Unrelated entries survive.
	_, ok = c.Peek(KeyCredits)
	assert.True(t, ok)
}

func TestCacheSubscribe(t *testing.T) {
	t.Parallel()

	c := New()
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Invalidate(KeyCredits)

	select {
	case key := <-ch:
		assert.Equal(t, KeyCredits, key)
	case <-time.After(time.Second):
		t.Fatal("expected invalidation notification")
	}

	cancel()
	c.Invalidate(KeyCredits)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("canceled subscriber should not receive")
		}
	default:
	}
}

func TestPoller_RefreshesUntilCanceled(t *testing.T) {
	t.Parallel()

	var calls int32
	p := NewPoller(KeyCredits, 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancellation")
	}
}
