package finsync

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/finsync/codec"
	gen "github.com/unkn0wn-root/finsync/genstore"
	"github.com/unkn0wn-root/finsync/internal/wire"
	"github.com/unkn0wn-root/finsync/jsonapi"
	pr "github.com/unkn0wn-root/finsync/provider"
)

type SetCostFunc func(storageKey string, raw []byte) int64

// SharedOptions tune the shared tier. Only Namespace and Provider are required.
type SharedOptions struct {
	Namespace string // e.g. "dash:prod"
	Provider  pr.Provider

	Codec           codec.Codec[jsonapi.Resource] // nil => codec.JSON
	GenStore        gen.GenStore                  // nil => genstore.Local
	Logger          Logger                        // nil => NopLogger
	Hooks           Hooks                         // nil => NopHooks
	ComputeSetCost  SetCostFunc                   // nil => len(raw)
	CleanupInterval time.Duration                 // local gens; 0 => 1h
	GenRetention    time.Duration                 // local gens; 0 => 30d
}

// Shared is a process-level tier that sessions consult between their own
// caches and the network. Entries carry the generation observed before the
// round trip that produced them; a read whose generation no longer matches is
// a miss and the entry is deleted.
//
// Storage keys: entry:<ns>:<class>:<id>. The tier never sets a TTL; the
// provider may still evict.
type Shared struct {
	ns       string
	provider pr.Provider
	codec    codec.Codec[jsonapi.Resource]
	gen      gen.GenStore
	log      Logger
	hooks    Hooks
	cost     SetCostFunc
}

func NewShared(opts SharedOptions) (*Shared, error) {
	if opts.Provider == nil {
		return nil, errors.New("finsync: shared provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("finsync: shared namespace is required")
	}
	s := &Shared{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		gen:      opts.GenStore,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		cost:     opts.ComputeSetCost,
	}
	if s.codec == nil {
		s.codec = codec.JSON[jsonapi.Resource]{}
	}
	if s.cost == nil {
		s.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if s.gen == nil {
		// in-process generations with periodic cleanup
		s.gen = gen.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}
	return s, nil
}

func (s *Shared) Close(ctx context.Context) error {
	// gen store first (best effort)
	_ = s.gen.Close(ctx)
	return s.provider.Close(ctx)
}

// Get returns the entry for class/id if present and current.
// Provider errors are returned; every other failure is a self-healed miss.
func (s *Shared) Get(ctx context.Context, class, id string) (jsonapi.Resource, bool, error) {
	k := s.key(class, id)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return jsonapi.Resource{}, false, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, k, "corrupt")
		return jsonapi.Resource{}, false, nil
	}
	if e.Class != class {
		s.heal(ctx, k, "class_mismatch")
		return jsonapi.Resource{}, false, nil
	}
	if e.Gen != s.snapshotGen(ctx, k) {
		s.heal(ctx, k, "gen_mismatch")
		return jsonapi.Resource{}, false, nil
	}
	r, err := s.codec.Decode(e.Payload)
	if err != nil {
		s.heal(ctx, k, "value_decode")
		return jsonapi.Resource{}, false, nil
	}
	if r.Type != class || r.ID != id {
		s.heal(ctx, k, "identity")
		return jsonapi.Resource{}, false, nil
	}
	return r, true, nil
}

// SnapshotGen returns the generation to pass to SetWithGen. Take it before the
// round trip whose result will be stored.
func (s *Shared) SnapshotGen(ctx context.Context, class, id string) uint64 {
	return s.snapshotGen(ctx, s.key(class, id))
}

// SetWithGen stores r iff the generation of r's key still equals observed.
func (s *Shared) SetWithGen(ctx context.Context, r jsonapi.Resource, observed uint64) error {
	k := s.key(r.Type, r.ID)
	if s.snapshotGen(ctx, k) != observed {
		// generation moved; skip stale write
		s.log.Debug("shared set skipped (gen mismatch)", Fields{"key": k, "obs": observed})
		return nil
	}
	return s.write(ctx, k, r, observed)
}

// Publish makes r the current entry: it bumps the generation, which
// invalidates every entry written from an older observation, then writes r
// under the new generation. If the bump fails the old entry is deleted.
func (s *Shared) Publish(ctx context.Context, r jsonapi.Resource) error {
	k := s.key(r.Type, r.ID)
	g, bumpErr := s.gen.Bump(ctx, k)
	if bumpErr != nil {
		s.hooks.GenBumpError(k, bumpErr)
		delErr := s.provider.Del(ctx, k)
		s.log.Error("gen bump error", Fields{"key": k, "err": bumpErr, "delErr": delErr})
		return &PublishError{Key: k, BumpErr: bumpErr, SetErr: delErr}
	}
	if err := s.write(ctx, k, r, g); err != nil {
		return &PublishError{Key: k, SetErr: err}
	}
	return nil
}

func (s *Shared) write(ctx context.Context, k string, r jsonapi.Resource, g uint64) error {
	payload, err := s.codec.Encode(r)
	if err != nil {
		return err
	}
	b, err := wire.Encode(wire.Entry{Gen: g, Class: r.Type, Payload: payload})
	if err != nil {
		return err
	}
	ok, err := s.provider.Set(ctx, k, b, s.cost(k, b), 0)
	if err != nil {
		s.log.Warn("shared set error", Fields{"key": k, "err": err})
		return err
	}
	if !ok {
		s.hooks.SharedSetRejected(k)
		s.log.Debug("shared set rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

func (s *Shared) heal(ctx context.Context, k, reason string) {
	_ = s.provider.Del(ctx, k)
	s.hooks.SharedSelfHeal(k, reason)
	s.log.Debug("shared entry self-healed", Fields{"key": k, "reason": reason})
}

func (s *Shared) snapshotGen(ctx context.Context, storageKey string) uint64 {
	g, err := s.gen.Snapshot(ctx, storageKey)
	if err != nil {
		// Conservative: treat as 0 so CAS writes skip and reads self-heal
		s.log.Warn("gen snapshot error", Fields{"key": storageKey, "err": err})
		return 0
	}
	return g
}

func (s *Shared) key(class, id string) string {
	return "entry:" + s.ns + ":" + class + ":" + id
}
