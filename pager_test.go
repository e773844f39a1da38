package finsync

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

// blockFirst makes the first request wait until the returned release func is
// called; entered is closed once that request has reached the server.
func blockFirst(api *fakeAPI) (entered <-chan struct{}, release func()) {
	in := make(chan struct{})
	out := make(chan struct{})
	var once sync.Once
	api.gate = func(*http.Request) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(in)
			<-out
		}
	}
	var rel sync.Once
	return in, func() { rel.Do(func() { close(out) }) }
}

func TestPagerAdvancesByReturnedCount(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(12)...)
	var mu sync.Mutex
	var offsets []string
	api.gate = func(r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("page[offset]"))
		mu.Unlock()
	}
	s := newTestSession(t, api, nil)
	p := s.Transactions()

	res, err := p.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Added: 12, Offset: 12}, res)
	assert.Equal(t, 12, p.Offset())

	// empty page leaves the offset where it was
	res, err = p.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Offset: 12}, res)
	mu.Lock()
	assert.Equal(t, []string{"0", "12"}, offsets)
	mu.Unlock()
	assert.Len(t, p.List().Read(), 12)
}

func TestPagerAppendsPagesInServerOrder(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(45)...)
	s := newTestSession(t, api, nil)
	p := s.Transactions()

	_, err := p.Load(t.Context())
	require.NoError(t, err)
	res, err := p.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 15, res.Added)
	assert.Equal(t, 45, res.Offset)

	got := p.List().Read()
	require.Len(t, got, 45)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "31", got[30].ID)
}

func TestPagerResetLeavesFirstPage(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(45)...)
	s := newTestSession(t, api, nil)
	p := s.Transactions()

	for range 2 {
		_, err := p.Load(t.Context())
		require.NoError(t, err)
	}
	res, err := p.Reset(t.Context())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Added: 30, Offset: 30}, res)

	got := p.List().Read()
	require.Len(t, got, 30)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "30", got[29].ID)
}

func TestPagerLoadWhileBusyIsDropped(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(5)...)
	entered, release := blockFirst(api)
	defer release()
	hooks := &recHooks{}
	s := newTestSession(t, api, func(o *Options) { o.Hooks = hooks })
	p := s.Transactions()

	done := make(chan LoadResult, 1)
	go func() {
		res, err := p.Load(t.Context())
		assert.NoError(t, err)
		done <- res
	}()
	<-entered

	res, err := p.Load(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, api.total())
	assert.Zero(t, p.List().Len())
	assert.Equal(t, 1, hooks.count("skipped"))

	release()
	assert.Equal(t, 5, (<-done).Added)
	assert.Equal(t, 1, api.total())
}

func TestPagerResetDiscardsInFlightPage(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(5)...)
	entered, release := blockFirst(api)
	defer release()
	hooks := &recHooks{}
	s := newTestSession(t, api, func(o *Options) { o.Hooks = hooks })
	p := s.Transactions()

	done := make(chan LoadResult, 1)
	go func() {
		res, _ := p.Load(t.Context())
		done <- res
	}()
	<-entered

	res, err := p.Reset(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	release()
	assert.Zero(t, (<-done).Added)
	assert.Zero(t, p.List().Len())
	assert.Zero(t, p.Offset())
	assert.Equal(t, 1, hooks.count("discarded"))

	res, err = p.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Added: 5, Offset: 5}, res)
}

func TestPagerStaysBusyUntilAbandonedPageSettles(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(40)...)
	var inFlight, peak atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	api.gate = func(r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		if r.URL.Query().Get("page[offset]") == "30" {
			once.Do(func() { close(entered) })
			<-release
		}
	}
	s := newTestSession(t, api, nil)
	p := s.Transactions()

	_, err := p.Load(t.Context())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := p.Load(ctx)
		done <- err
	}()
	<-entered
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	res, err := p.Reset(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	res, err = p.Load(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	close(release)
	assert.Eventually(t, func() bool {
		res, err := p.Load(t.Context())
		return err == nil && !res.Skipped
	}, 2*time.Second, 10*time.Millisecond)

	got := p.List().Read()
	require.Len(t, got, 30)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 3, api.count("GET /api/transactions"))
}

func TestPagerSurfacesHTTPStatus(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txns(3)...)
	api.status.Store(http.StatusServiceUnavailable)
	hooks := &recHooks{}
	s := newTestSession(t, api, func(o *Options) { o.Hooks = hooks })
	p := s.Transactions()

	_, err := p.Load(t.Context())
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.Status)
	assert.Zero(t, p.List().Len())
	assert.Zero(t, p.Offset())
	assert.Equal(t, 1, hooks.count("http_status"))

	// the busy flag was cleared
	api.status.Store(0)
	res, err := p.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
}

func TestPagerRejectsInvalidPage(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	bad := txn("1", 1)
	bad.Attributes["amount"] = jsonapi.String("lots")
	api.seed(ClassTransactions, txn("0", 0), bad)
	s := newTestSession(t, api, nil)
	p := s.Transactions()

	_, err := p.Load(t.Context())
	var se *jsonapi.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "amount", se.Attribute)
	assert.Zero(t, p.List().Len())
	assert.Zero(t, s.Collection(ClassTransactions).Len())
}

func TestUncategorisedIndexesTransactions(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(CollectionUncategorised, txn("7", 12.5))
	s := newTestSession(t, api, nil)

	res, err := s.Uncategorised().Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Zero(t, s.Transactions().List().Len())

	got, err := s.Resolver(ClassTransactions).Lookup(t.Context(), "7")
	require.NoError(t, err)
	assert.Equal(t, 1, api.total())

	d, ok := got.Attributes["date"].Time()
	require.True(t, ok)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, 2, int(d.Month())-1)
	assert.Equal(t, 5, d.Day())
	assert.Zero(t, d.Hour())
}
