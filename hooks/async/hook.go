// Package asynchook runs finsync hooks on a bounded worker queue so slow
// sinks never stall a load. Events are dropped when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // ~every 10th self-heal
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	s, _ := finsync.New(finsync.Options{
//	    BaseURL: "http://localhost:8080",
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/finsync"
)

type Hooks struct {
	inner   finsync.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends
	closed  bool
	dropped atomic.Uint64
}

var _ finsync.Hooks = (*Hooks)(nil)

func New(inner finsync.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for range workers {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchCoalesced(k string)          { h.try(func() { h.inner.FetchCoalesced(k) }) }
func (h *Hooks) LoadSkipped(c string)             { h.try(func() { h.inner.LoadSkipped(c) }) }
func (h *Hooks) PageDiscarded(c string)           { h.try(func() { h.inner.PageDiscarded(c) }) }
func (h *Hooks) SharedSelfHeal(k, r string)       { h.try(func() { h.inner.SharedSelfHeal(k, r) }) }
func (h *Hooks) SharedSetRejected(k string)       { h.try(func() { h.inner.SharedSetRejected(k) }) }
func (h *Hooks) GenBumpError(k string, err error) { h.try(func() { h.inner.GenBumpError(k, err) }) }
func (h *Hooks) HTTPStatus(m, u string, s int) {
	h.try(func() { h.inner.HTTPStatus(m, u, s) })
}
