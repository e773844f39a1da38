package finsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/finsync/jsonapi"
	"github.com/unkn0wn-root/finsync/transport"
)

// maxLookupConcurrency bounds LookupMany fan-out.
const maxLookupConcurrency = 8

// Resolver resolves resources of one class by id.
type Resolver struct {
	deps  *deps
	class string
	cache *Cache
}

func (r *Resolver) Cache() *Cache { return r.cache }

// Lookup returns the resource with id. Sources are tried in order: the
// session cache, the shared tier, then a deduplicated GET. Concurrent lookups
// of the same missing id share one request. Errors wrap ErrNotFound when the
// backend has no such resource.
func (r *Resolver) Lookup(ctx context.Context, id string) (jsonapi.Resource, error) {
	if res, ok := r.cache.Get(id); ok {
		return res, nil
	}
	if id == "" {
		return jsonapi.Resource{}, notFound(r.class, id)
	}
	if res, ok := r.fromShared(ctx, id); ok {
		return res, nil
	}

	key := "byid:" + r.class + ":" + id
	res, err := FetchOnce(ctx, r.deps.dedup, key, func(ctx context.Context) (jsonapi.Resource, error) {
		var obs uint64
		if r.deps.shared != nil {
			obs = r.deps.shared.SnapshotGen(ctx, r.class, id)
		}
		got, err := r.deps.client.Get(ctx, r.class, id)
		if err != nil {
			return jsonapi.Resource{}, err
		}
		got, err = r.deps.normalize(r.class, got)
		if err != nil {
			return jsonapi.Resource{}, err
		}
		if got.ID != id {
			return jsonapi.Resource{}, &transport.ProtocolError{
				Method: http.MethodGet,
				URL:    r.deps.client.ItemURL(r.class, id),
				Err:    fmt.Errorf("response id %q does not match", got.ID),
			}
		}
		r.cache.Merge(id, got)
		r.deps.seed(ctx, got, obs)
		return got, nil
	})
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return jsonapi.Resource{}, notFound(r.class, id)
		}
		r.deps.report("lookup", err)
		return jsonapi.Resource{}, err
	}
	return res, nil
}

func (r *Resolver) fromShared(ctx context.Context, id string) (jsonapi.Resource, bool) {
	if r.deps.shared == nil {
		return jsonapi.Resource{}, false
	}
	res, ok, err := r.deps.shared.Get(ctx, r.class, id)
	if err != nil {
		r.deps.log.Warn("shared get failed", Fields{"class": r.class, "id": id, "err": err})
		return jsonapi.Resource{}, false
	}
	if !ok {
		return jsonapi.Resource{}, false
	}
	res, err = r.deps.normalize(r.class, res)
	if err != nil {
		r.deps.log.Warn("shared entry rejected", Fields{"class": r.class, "id": id, "err": err})
		return jsonapi.Resource{}, false
	}
	r.cache.Merge(id, res)
	return res, true
}

// LookupMany resolves ids concurrently and returns the results by id. The
// first failure cancels the remaining lookups and is returned.
func (r *Resolver) LookupMany(ctx context.Context, ids []string) (map[string]jsonapi.Resource, error) {
	out := make(map[string]jsonapi.Resource, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookupConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			res, err := r.Lookup(ctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Follow resolves the relationship rel of from, e.g. a category's parent.
// ok is false when the relationship is absent or null.
func (r *Resolver) Follow(ctx context.Context, from jsonapi.Resource, rel string) (res jsonapi.Resource, ok bool, err error) {
	ref, ok := from.Related(rel)
	if !ok {
		return jsonapi.Resource{}, false, nil
	}
	if ref.Type != r.class {
		return jsonapi.Resource{}, false, &jsonapi.SchemaError{
			Type:   from.Type,
			ID:     from.ID,
			Reason: fmt.Sprintf("relationship %q points to %s, not %s", rel, ref.Type, r.class),
		}
	}
	res, err = r.Lookup(ctx, ref.ID)
	if err != nil {
		return jsonapi.Resource{}, false, err
	}
	return res, true, nil
}
