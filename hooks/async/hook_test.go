package asynchook

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/finsync"
)

type countHooks struct {
	finsync.NopHooks
	mu    sync.Mutex
	n     int
	block chan struct{}
}

func (c *countHooks) LoadSkipped(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestDeliversBeforeClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 16)
	for range 10 {
		h.LoadSkipped("transactions")
	}
	h.Close()
	h.Close()

	assert.Equal(t, 10, inner.n)
	assert.Zero(t, h.Dropped())

	h.LoadSkipped("transactions")
	assert.Equal(t, uint64(1), h.Dropped())
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event may be held by the worker, one queued; the rest drop
	for range 10 {
		h.LoadSkipped("transactions")
	}
	close(inner.block)
	h.Close()

	assert.GreaterOrEqual(t, h.Dropped(), uint64(8))
	assert.Equal(t, 10-int(h.Dropped()), inner.n)
}
