package finsync

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Deduplicator collapses concurrent identical requests into one round trip.
// A key is released in the same critical section that hands the result to its
// waiters, so a caller arriving after settlement always starts a fresh call.
//
// Create one per Session; there is no package-level instance.
type Deduplicator struct {
	g     singleflight.Group
	log   Logger
	hooks Hooks
}

func NewDeduplicator(log Logger, hooks Hooks) *Deduplicator {
	return &Deduplicator{
		log:   coalesce[Logger](log, NopLogger{}),
		hooks: coalesce[Hooks](hooks, NopHooks{}),
	}
}

// FetchOnce runs op under key unless a call for key is already in flight, in
// which case it waits for that call and returns its value and error.
//
// op runs without the caller's cancellation: a caller whose ctx ends gets
// ctx.Err() and the call settles for the remaining waiters. Bound op with a
// client timeout instead.
func FetchOnce[V any](ctx context.Context, d *Deduplicator, key string, op func(context.Context) (V, error)) (V, error) {
	v, _, err := fetchOnce(ctx, d, key, op, nil)
	return v, err
}

// fetchOnce is FetchOnce that also reports whether the caller gave up before
// the call settled. In that case settled, when non-nil, runs once the call
// finishes, so callers guarding their own in-flight state can release it then.
func fetchOnce[V any](ctx context.Context, d *Deduplicator, key string, op func(context.Context) (V, error), settled func()) (v V, abandoned bool, err error) {
	detached := context.WithoutCancel(ctx)
	ch := d.g.DoChan(key, func() (any, error) {
		return op(detached)
	})

	select {
	case <-ctx.Done():
		if settled != nil {
			go func() {
				<-ch
				settled()
			}()
		}
		d.log.Debug("fetch abandoned by caller", Fields{"key": key})
		return v, true, ctx.Err()
	case res := <-ch:
		if res.Shared {
			d.hooks.FetchCoalesced(key)
			d.log.Debug("fetch coalesced", Fields{"key": key})
		}
		if res.Err != nil {
			return v, false, res.Err
		}
		if res.Val == nil {
			return v, false, nil
		}
		got, ok := res.Val.(V)
		if !ok {
			return v, false, fmt.Errorf("finsync: key %q shared by calls of different result types (%T)", key, res.Val)
		}
		return got, false, nil
	}
}
