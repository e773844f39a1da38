package finsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/unkn0wn-root/finsync/jsonapi"
	"github.com/unkn0wn-root/finsync/transport"
)

// Reconciler writes resources of one class and merges the server's answer
// into the session cache, so the written resource is readable without another
// round trip. The cache changes only after a successful, valid response.
type Reconciler struct {
	deps  *deps
	class string
	cache *Cache
}

func (r *Reconciler) Cache() *Cache { return r.cache }

// Create posts a new resource and returns it as stored under the
// server-assigned id. Relationships with an empty target id are omitted.
func (r *Reconciler) Create(ctx context.Context, attrs map[string]jsonapi.Value, rels map[string]jsonapi.Identifier) (jsonapi.Resource, error) {
	if err := r.deps.schema(r.class).Validate(attrs); err != nil {
		return jsonapi.Resource{}, err
	}
	body := jsonapi.Resource{Type: r.class, Attributes: attrs, Relationships: jsonapi.Relate(rels)}
	got, err := r.deps.client.Create(ctx, r.class, body)
	if err != nil {
		r.deps.report("create", err)
		return jsonapi.Resource{}, err
	}
	if got.ID == "" {
		return jsonapi.Resource{}, &transport.ProtocolError{
			Method: http.MethodPost,
			URL:    r.deps.client.CollectionURL(r.class, nil),
			Err:    errors.New("created resource has no id"),
		}
	}
	return r.settle(ctx, got.ID, got)
}

// Update puts the resource under id and returns the stored version, which
// replaces the cached entry as a whole.
func (r *Reconciler) Update(ctx context.Context, id string, attrs map[string]jsonapi.Value, rels map[string]jsonapi.Identifier) (jsonapi.Resource, error) {
	if id == "" {
		return jsonapi.Resource{}, fmt.Errorf("finsync: update %s: empty id", r.class)
	}
	if err := r.deps.schema(r.class).Validate(attrs); err != nil {
		return jsonapi.Resource{}, err
	}
	body := jsonapi.Resource{Type: r.class, ID: id, Attributes: attrs, Relationships: jsonapi.Relate(rels)}
	got, err := r.deps.client.Update(ctx, r.class, id, body)
	if err != nil {
		r.deps.report("update", err)
		return jsonapi.Resource{}, err
	}
	switch got.ID {
	case "":
		// servers may omit the id they were addressed by
		got.ID = id
	case id:
	default:
		return jsonapi.Resource{}, &transport.ProtocolError{
			Method: http.MethodPut,
			URL:    r.deps.client.ItemURL(r.class, id),
			Err:    fmt.Errorf("response id %q does not match", got.ID),
		}
	}
	return r.settle(ctx, id, got)
}

func (r *Reconciler) settle(ctx context.Context, id string, got jsonapi.Resource) (jsonapi.Resource, error) {
	got, err := r.deps.normalize(r.class, got)
	if err != nil {
		return jsonapi.Resource{}, err
	}
	r.cache.Merge(id, got)
	if r.deps.shared != nil {
		if err := r.deps.shared.Publish(ctx, got); err != nil {
			// the session cache is already current; other sessions refetch
			r.deps.log.Warn("shared publish failed", Fields{"class": r.class, "id": id, "err": err})
		}
	}
	return got, nil
}
