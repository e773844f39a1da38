package finsync

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

func TestLookupHitsCacheWithoutNetwork(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	s := newTestSession(t, api, nil)
	s.Collection(ClassCategories).Merge("1", category("1", "Food"))

	got, err := s.Resolver(ClassCategories).Lookup(t.Context(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Food", Title(got))
	assert.Zero(t, api.total())
}

func TestLookupFetchesAndCaches(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassCategories, category("5", "Rent"))
	s := newTestSession(t, api, nil)
	r := s.Resolver(ClassCategories)

	got, err := r.Lookup(t.Context(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Rent", Title(got))

	_, err = r.Lookup(t.Context(), "5")
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("GET /api/categories/5"))

	_, ok := s.Collection(ClassCategories).Get("5")
	assert.True(t, ok)
}

func TestLookupMissingIsNotFound(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	s := newTestSession(t, api, nil)

	_, err := s.Resolver(ClassCategories).Lookup(t.Context(), "404")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `categories "404"`)
	assert.Zero(t, s.Collection(ClassCategories).Len())

	_, err = s.Resolver(ClassCategories).Lookup(t.Context(), "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, api.total())
}

func TestConcurrentLookupsShareOneRequest(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassCategories, category("1", "A"), category("2", "B"))
	api.gate = func(*http.Request) { time.Sleep(100 * time.Millisecond) }
	hooks := &recHooks{}
	s := newTestSession(t, api, func(o *Options) { o.Hooks = hooks })
	r := s.Resolver(ClassCategories)

	var wg sync.WaitGroup
	for _, id := range []string{"1", "1", "1", "1", "2", "2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Lookup(t.Context(), id)
			if assert.NoError(t, err) {
				assert.Equal(t, id, got.ID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, api.count("GET /api/categories/1"))
	assert.Equal(t, 1, api.count("GET /api/categories/2"))
	assert.Positive(t, hooks.count("coalesced"))
}

func TestLookupMany(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassCategories, category("1", "A"), category("2", "B"), category("3", "C"))
	s := newTestSession(t, api, nil)

	got, err := s.Resolver(ClassCategories).LookupMany(t.Context(), []string{"1", "3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "C", Title(got["3"]))

	_, err = s.Resolver(ClassCategories).LookupMany(t.Context(), []string{"2", "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryParent(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	child := category("2", "Groceries")
	child.Relationships = jsonapi.Links(ClassCategories, map[string]string{"parent": "1"})
	api.seed(ClassCategories, category("1", "Food"), child)
	s := newTestSession(t, api, nil)
	cats := s.Categories()

	res, err := cats.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)

	parent, ok, err := cats.Parent(t.Context(), child)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Food", Title(parent))

	_, ok, err = cats.Parent(t.Context(), parent)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, api.total())

	odd := category("3", "Odd")
	odd.Relationships = jsonapi.Links(ClassDashboards, map[string]string{"parent": "1"})
	_, _, err = cats.Parent(t.Context(), odd)
	var se *jsonapi.SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestSharedTierAcrossSessions(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.seed(ClassTransactions, txn("1", 10))
	shared := newTestShared(t, newMemProvider(), nil)
	withShared := func(o *Options) { o.Shared = shared }

	a := newTestSession(t, api, withShared)
	_, err := a.Resolver(ClassTransactions).Lookup(t.Context(), "1")
	require.NoError(t, err)
	require.Equal(t, 1, api.total())

	// a second session is served by the shared tier, dates included
	b := newTestSession(t, api, withShared)
	got, err := b.Resolver(ClassTransactions).Lookup(t.Context(), "1")
	require.NoError(t, err)
	assert.Equal(t, 1, api.total())
	_, isDate := got.Attributes["date"].Time()
	assert.True(t, isDate)

	// a mutation in b is what a third session sees
	_, err = b.Reconciler(ClassTransactions).Update(t.Context(), "1", map[string]jsonapi.Value{
		"date":   jsonapi.String("2024-04-01"),
		"amount": jsonapi.Number(99),
	}, nil)
	require.NoError(t, err)

	c := newTestSession(t, api, withShared)
	got, err = c.Resolver(ClassTransactions).Lookup(t.Context(), "1")
	require.NoError(t, err)
	amount, _ := got.Attributes["amount"].Num()
	assert.Equal(t, 99.0, amount)
	assert.Equal(t, 1, api.count("GET /api/transactions/1"))
}
