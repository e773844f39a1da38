package finsync

import (
	"context"
	"sync/atomic"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

// Loader loads a whole, non-paginated collection into a Cache.
//
// Results are merged, not swapped in: entries already cached through lookups
// or mutations survive a load that does not list them. Like Pager, Load while
// busy returns Skipped and does nothing.
type Loader struct {
	deps       *deps
	collection string
	class      string
	cache      *Cache

	busy atomic.Bool
}

func (l *Loader) Cache() *Cache { return l.cache }

func (l *Loader) release() { l.busy.Store(false) }

func (l *Loader) Load(ctx context.Context) (LoadResult, error) {
	if !l.busy.CompareAndSwap(false, true) {
		l.deps.hooks.LoadSkipped(l.collection)
		l.deps.log.Debug("load skipped (in flight)", Fields{"collection": l.collection})
		return LoadResult{Skipped: true}, nil
	}

	items, abandoned, err := fetchOnce(ctx, l.deps.dedup, "list:"+l.collection, func(ctx context.Context) ([]jsonapi.Resource, error) {
		raw, err := l.deps.client.List(ctx, l.collection, nil)
		if err != nil {
			return nil, err
		}
		return l.deps.normalizeAll(l.class, raw)
	}, l.release)
	if abandoned {
		return LoadResult{}, err
	}
	defer l.release()
	if err != nil {
		l.deps.report("list", err)
		return LoadResult{}, err
	}
	l.cache.MergeAll(items)
	return LoadResult{Added: len(items), Offset: len(items)}, nil
}
