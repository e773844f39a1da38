package finsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitJoined gives goroutines that have announced themselves time to reach
// the in-flight call before it is released.
func waitJoined(wg *sync.WaitGroup) {
	wg.Wait()
	time.Sleep(50 * time.Millisecond)
}

func TestFetchOnceCollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	hooks := &recHooks{}
	d := NewDeduplicator(nil, hooks)
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 32
	var arrived, done sync.WaitGroup
	results := make([]*int, n)
	for i := range n {
		arrived.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			arrived.Done()
			v, err := FetchOnce(t.Context(), d, "byid:categories:1", func(context.Context) (*int, error) {
				calls.Add(1)
				<-release
				x := 42
				return &x, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	waitJoined(&arrived)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, n, hooks.count("coalesced"))
}

func TestFetchOnceSharesErrors(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil, nil)
	boom := errors.New("boom")
	release := make(chan struct{})

	var arrived, done sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		arrived.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			arrived.Done()
			_, errs[i] = FetchOnce(t.Context(), d, "k", func(context.Context) (int, error) {
				<-release
				return 0, boom
			})
		}()
	}
	waitJoined(&arrived)
	close(release)
	done.Wait()

	for _, err := range errs {
		assert.Same(t, boom, err)
	}
}

func TestFetchOnceReleasesKeyOnSettle(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil, nil)
	var calls atomic.Int32
	op := func(context.Context) (int32, error) { return calls.Add(1), nil }

	first, err := FetchOnce(t.Context(), d, "k", op)
	require.NoError(t, err)
	second, err := FetchOnce(t.Context(), d, "k", op)
	require.NoError(t, err)

	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(2), second)
}

func TestFetchOnceIndependentKeys(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil, nil)
	a, err := FetchOnce(t.Context(), d, "a", func(context.Context) (string, error) { return "A", nil })
	require.NoError(t, err)
	b, err := FetchOnce(t.Context(), d, "b", func(context.Context) (string, error) { return "B", nil })
	require.NoError(t, err)
	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
}

func TestFetchOnceCallerCancelDoesNotCancelCall(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	opErr := make(chan error, 1)

	ctx, cancel := context.WithCancel(t.Context())
	first := make(chan error, 1)
	go func() {
		_, err := FetchOnce(ctx, d, "k", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			opErr <- ctx.Err()
			return "v", nil
		})
		first <- err
	}()
	<-started

	var arrived sync.WaitGroup
	arrived.Add(1)
	second := make(chan string, 1)
	go func() {
		arrived.Done()
		v, err := FetchOnce(t.Context(), d, "k", func(context.Context) (string, error) {
			return "duplicate", nil
		})
		assert.NoError(t, err)
		second <- v
	}()
	waitJoined(&arrived)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.Equal(t, "v", <-second)
	assert.NoError(t, <-opErr)
}

func TestFetchOnceAbandonedCallerLearnsOfSettlement(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	settled := make(chan struct{})

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() {
		_, abandoned, err := fetchOnce(ctx, d, "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		}, func() { close(settled) })
		assert.True(t, abandoned)
		errc <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	select {
	case <-settled:
		t.Fatal("settled before the call finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("settled was not called")
	}
}
