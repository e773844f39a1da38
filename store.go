package finsync

import (
	"maps"
	"slices"
	"sync"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

// Observer receives snapshots of a store.
// Snapshots are shared between observers and must be treated as read-only.
type Observer[S any] interface {
	Next(S)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[S any] func(S)

func (f ObserverFunc[S]) Next(s S) { f(s) }

// hub tracks subscribers and delivers the latest state in order.
// mu guards the owner's state together with version; emitMu serializes
// delivery so observers never see an older snapshot after a newer one.
type hub[S any] struct {
	mu      sync.RWMutex
	emitMu  sync.Mutex
	version uint64
	emitted uint64
	nextID  uint64
	subs    map[uint64]Observer[S]
}

// emit delivers the current state unless it was already delivered.
// snap is called with mu read-locked.
func (h *hub[S]) emit(snap func() S) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.RLock()
	if h.version == h.emitted || len(h.subs) == 0 {
		h.emitted = h.version
		h.mu.RUnlock()
		return
	}
	s := snap()
	v := h.version
	subs := slices.Collect(maps.Values(h.subs))
	h.mu.RUnlock()

	h.emitted = v
	for _, o := range subs {
		o.Next(s)
	}
}

func (h *hub[S]) subscribe(o Observer[S], snap func() S) func() {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]Observer[S])
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = o
	s := snap()
	h.mu.Unlock()

	o.Next(s)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Cache is a reactive id -> resource mapping for one resource class.
// The zero value is not usable; use NewCache.
type Cache struct {
	class string
	items map[string]jsonapi.Resource
	hub   hub[map[string]jsonapi.Resource]
}

func NewCache(class string) *Cache {
	return &Cache{class: class, items: make(map[string]jsonapi.Resource)}
}

func (c *Cache) Class() string { return c.class }

// Read returns a copy of the current mapping.
func (c *Cache) Read() map[string]jsonapi.Resource {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return maps.Clone(c.items)
}

func (c *Cache) Get(id string) (jsonapi.Resource, bool) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	r, ok := c.items[id]
	return r, ok
}

func (c *Cache) Len() int {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return len(c.items)
}

// Replace swaps the whole mapping.
func (c *Cache) Replace(items map[string]jsonapi.Resource) {
	next := make(map[string]jsonapi.Resource, len(items))
	maps.Copy(next, items)
	c.update(func() { c.items = next })
}

// Merge inserts or overwrites the entry under id. The previous resource, if
// any, is replaced as a whole.
func (c *Cache) Merge(id string, r jsonapi.Resource) {
	c.update(func() { c.items[id] = r })
}

// MergeAll merges items by their ids and notifies once.
func (c *Cache) MergeAll(items []jsonapi.Resource) {
	if len(items) == 0 {
		return
	}
	c.update(func() {
		for _, r := range items {
			c.items[r.ID] = r
		}
	})
}

// Subscribe delivers the current mapping now and after every change until the
// returned func is called.
func (c *Cache) Subscribe(o Observer[map[string]jsonapi.Resource]) (unsubscribe func()) {
	return c.hub.subscribe(o, c.snapshot)
}

func (c *Cache) update(f func()) {
	c.hub.mu.Lock()
	f()
	c.hub.version++
	c.hub.mu.Unlock()
	c.hub.emit(c.snapshot)
}

func (c *Cache) snapshot() map[string]jsonapi.Resource { return maps.Clone(c.items) }

// List is the ordered, reactive variant of Cache used by paginated views.
type List struct {
	class string
	items []jsonapi.Resource
	hub   hub[[]jsonapi.Resource]
}

func NewList(class string) *List { return &List{class: class} }

func (l *List) Class() string { return l.class }

// Read returns a copy of the current items.
func (l *List) Read() []jsonapi.Resource {
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()
	return slices.Clone(l.items)
}

func (l *List) Len() int {
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()
	return len(l.items)
}

func (l *List) Replace(items []jsonapi.Resource) {
	l.update(func() { l.items = slices.Clone(items) })
}

// Append adds items in order. Duplicates are kept.
func (l *List) Append(items ...jsonapi.Resource) {
	if len(items) == 0 {
		return
	}
	l.update(func() { l.items = append(l.items, items...) })
}

func (l *List) Subscribe(o Observer[[]jsonapi.Resource]) (unsubscribe func()) {
	return l.hub.subscribe(o, l.snapshot)
}

func (l *List) update(f func()) {
	l.hub.mu.Lock()
	f()
	l.hub.version++
	l.hub.mu.Unlock()
	l.hub.emit(l.snapshot)
}

func (l *List) snapshot() []jsonapi.Resource { return slices.Clone(l.items) }
