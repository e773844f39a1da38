package genstore

import (
	"context"
	"sync"
	"time"
)

// generation is the counter of one shared-tier entry and the time it last
// moved.
type generation struct {
	n      uint64
	bumped time.Time
}

// Local keeps entry generations in process memory. It is what a Shared tier
// uses when no GenStore is configured, which is right for a single dashboard
// process.
//
// Forgetting a generation is safe: the entry reads as generation 0, no longer
// matches what was written under it, and is refetched. Local uses that to
// bound its size. When both sweep and retention are positive, generations not
// bumped for retention are dropped every sweep.
type Local struct {
	mu   sync.RWMutex
	gens map[string]generation

	stop    context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

var _ GenStore = (*Local)(nil)

func NewLocal(sweep, retention time.Duration) *Local {
	s := &Local{gens: make(map[string]generation)}
	if sweep <= 0 || retention <= 0 {
		return s
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.stopped = make(chan struct{})
	go s.sweepLoop(ctx, sweep, retention)
	return s
}

func (s *Local) sweepLoop(ctx context.Context, every, retention time.Duration) {
	defer close(s.stopped)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Cleanup(retention)
		}
	}
}

func (s *Local) Snapshot(_ context.Context, storageKey string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[storageKey].n, nil
}

func (s *Local) Bump(_ context.Context, storageKey string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := generation{n: s.gens[storageKey].n + 1, bumped: time.Now()}
	s.gens[storageKey] = g
	return g.n, nil
}

// Cleanup drops generations not bumped within retention.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.gens {
		if g.bumped.Before(cutoff) {
			delete(s.gens, k)
		}
	}
}

// Close stops the sweeper and waits for it. It may be called more than once.
func (s *Local) Close(context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
			<-s.stopped
		}
	})
	return nil
}
