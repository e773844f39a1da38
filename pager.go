package finsync

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/finsync/jsonapi"
	"github.com/unkn0wn-root/finsync/transport"
)

// LoadResult describes one Load.
type LoadResult struct {
	Added   int  // items appended
	Offset  int  // offset after the load
	Skipped bool // another load was in flight; nothing was done
}

// Pager appends successive pages of a collection to a List.
//
// At most one page request runs at a time. Load while busy returns Skipped
// without queueing anything; call Load again to get the next page. A Load
// whose ctx ends returns ctx.Err() but the pager stays busy until the request
// it started has settled. Observers of the
// pager's list must not call Reset synchronously.
type Pager struct {
	deps       *deps
	collection string
	class      string
	list       *List
	index      *Cache // optional; items are also merged here

	busy atomic.Bool

	mu     sync.Mutex // orders Reset against a settling page
	epoch  uint64
	offset atomic.Int64 // written under mu
}

func newPager(d *deps, collection, class string, index *Cache) *Pager {
	return &Pager{
		deps:       d,
		collection: collection,
		class:      class,
		list:       NewList(class),
		index:      index,
	}
}

// List returns the list the pager appends to.
func (p *Pager) List() *List { return p.list }

func (p *Pager) Collection() string { return p.collection }

// Offset reports how many items have been retrieved since the last reset.
func (p *Pager) Offset() int { return int(p.offset.Load()) }

// Load fetches the next page and appends it in server order. An empty page
// leaves the offset unchanged. On error nothing changes.
func (p *Pager) Load(ctx context.Context) (LoadResult, error) {
	if !p.busy.CompareAndSwap(false, true) {
		p.deps.hooks.LoadSkipped(p.collection)
		p.deps.log.Debug("load skipped (in flight)", Fields{"collection": p.collection})
		return LoadResult{Skipped: true}, nil
	}
	res, abandoned, err := p.load(ctx)
	if !abandoned {
		p.release()
	}
	return res, err
}

func (p *Pager) release() { p.busy.Store(false) }

// Reset empties the list, rewinds to offset 0 and loads the first page. A page
// in flight from before the reset is discarded when it arrives; while it is
// still in flight the reload itself is skipped and the caller should Load again.
func (p *Pager) Reset(ctx context.Context) (LoadResult, error) {
	p.mu.Lock()
	p.epoch++
	p.offset.Store(0)
	p.list.Replace(nil)
	p.mu.Unlock()

	return p.Load(ctx)
}

// load reports abandoned when ctx ended before the page request settled; the
// busy flag is then released by the request itself.
func (p *Pager) load(ctx context.Context) (LoadResult, bool, error) {
	p.mu.Lock()
	epoch := p.epoch
	offset := int(p.offset.Load())
	p.mu.Unlock()

	page := &transport.Page{Offset: offset, Limit: p.deps.pageSize}
	key := "page:" + p.collection + ":" + strconv.Itoa(page.Offset) + ":" + strconv.Itoa(page.Limit)
	items, abandoned, err := fetchOnce(ctx, p.deps.dedup, key, func(ctx context.Context) ([]jsonapi.Resource, error) {
		raw, err := p.deps.client.List(ctx, p.collection, page)
		if err != nil {
			return nil, err
		}
		return p.deps.normalizeAll(p.class, raw)
	}, p.release)
	if err != nil {
		p.deps.report("page", err)
		return LoadResult{Offset: offset}, abandoned, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != epoch {
		p.deps.hooks.PageDiscarded(p.collection)
		p.deps.log.Debug("page discarded after reset", Fields{"collection": p.collection, "count": len(items)})
		return LoadResult{Offset: int(p.offset.Load())}, false, nil
	}
	if len(items) == 0 {
		return LoadResult{Offset: offset}, false, nil
	}
	p.list.Append(items...)
	if p.index != nil {
		p.index.MergeAll(items)
	}
	offset += len(items)
	p.offset.Store(int64(offset))
	return LoadResult{Added: len(items), Offset: offset}, false, nil
}
