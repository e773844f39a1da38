package finsync

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/unkn0wn-root/finsync/jsonapi"
	"github.com/unkn0wn-root/finsync/transport"
)

// deps are shared by every component handed out by one Session.
type deps struct {
	client   *transport.Client
	dedup    *Deduplicator
	shared   *Shared
	log      Logger
	hooks    Hooks
	loc      *time.Location
	pageSize int
	schemas  map[string]jsonapi.Schema
}

func (d *deps) schema(class string) jsonapi.Schema {
	if s, ok := d.schemas[class]; ok {
		return s
	}
	return jsonapi.Schema{Type: class}
}

func (d *deps) normalize(class string, r jsonapi.Resource) (jsonapi.Resource, error) {
	return d.schema(class).Normalize(r, d.loc)
}

func (d *deps) normalizeAll(class string, items []jsonapi.Resource) ([]jsonapi.Resource, error) {
	s := d.schema(class)
	out := make([]jsonapi.Resource, len(items))
	for i, r := range items {
		n, err := s.Normalize(r, d.loc)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// report surfaces a failed round trip to hooks and the log.
func (d *deps) report(op string, err error) {
	var se *transport.StatusError
	if errors.As(err, &se) {
		d.hooks.HTTPStatus(se.Method, se.URL, se.Status)
		d.log.Warn("http status", Fields{"op": op, "method": se.Method, "url": se.URL, "status": se.Status})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	d.log.Warn("request failed", Fields{"op": op, "err": err})
}

// seed writes a freshly fetched resource to the shared tier, guarded by the
// generation observed before the request.
func (d *deps) seed(ctx context.Context, r jsonapi.Resource, observed uint64) {
	if d.shared == nil {
		return
	}
	if err := d.shared.SetWithGen(ctx, r, observed); err != nil {
		d.log.Warn("shared seed failed", Fields{"class": r.Type, "id": r.ID, "err": err})
	}
}

// Session owns the transport, the deduplicator and one cache per resource
// class. Components are created on first use and then reused.
type Session struct {
	deps *deps

	mu          sync.Mutex
	caches      map[string]*Cache
	loaders     map[string]*Loader
	pagers      map[string]*Pager
	resolvers   map[string]*Resolver
	reconcilers map[string]*Reconciler
}

func New(opts Options) (*Session, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: coalesce(opts.Timeout, defaultTimeout)}
	}
	client, err := transport.New(transport.Options{
		BaseURL:    opts.BaseURL,
		Prefix:     opts.Prefix,
		HTTPClient: hc,
		Format:     opts.Format,
		MaxBody:    opts.MaxBody,
	})
	if err != nil {
		return nil, err
	}
	if opts.PageSize < 0 {
		return nil, errors.New("finsync: page size must not be negative")
	}

	schemas := DefaultSchemas()
	maps.Copy(schemas, opts.Schemas)

	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})
	loc := opts.DateLocation
	if loc == nil {
		loc = time.Local
	}

	return &Session{
		deps: &deps{
			client:   client,
			dedup:    NewDeduplicator(log, hooks),
			shared:   opts.Shared,
			log:      log,
			hooks:    hooks,
			loc:      loc,
			pageSize: coalesce(opts.PageSize, DefaultPageSize),
			schemas:  schemas,
		},
		caches:      make(map[string]*Cache),
		loaders:     make(map[string]*Loader),
		pagers:      make(map[string]*Pager),
		resolvers:   make(map[string]*Resolver),
		reconcilers: make(map[string]*Reconciler),
	}, nil
}

// Deduplicator returns the session's deduplicator, for callers issuing their
// own requests against the same backend.
func (s *Session) Deduplicator() *Deduplicator { return s.deps.dedup }

// Client returns the session's transport.
func (s *Session) Client() *transport.Client { return s.deps.client }

// Collection returns the keyed cache of class.
func (s *Session) Collection(class string) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheLocked(class)
}

func (s *Session) cacheLocked(class string) *Cache {
	c, ok := s.caches[class]
	if !ok {
		c = NewCache(class)
		s.caches[class] = c
	}
	return c
}

// Resolver returns the lookup-or-fetch resolver of class.
func (s *Session) Resolver(class string) *Resolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resolvers[class]
	if !ok {
		r = &Resolver{deps: s.deps, class: class, cache: s.cacheLocked(class)}
		s.resolvers[class] = r
	}
	return r
}

// Reconciler returns the mutation reconciler of class.
func (s *Session) Reconciler(class string) *Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reconcilers[class]
	if !ok {
		r = &Reconciler{deps: s.deps, class: class, cache: s.cacheLocked(class)}
		s.reconcilers[class] = r
	}
	return r
}

// Loader returns the full-collection loader of class.
func (s *Session) Loader(class string) *Loader {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loaders[class]
	if !ok {
		l = &Loader{deps: s.deps, collection: class, class: class, cache: s.cacheLocked(class)}
		s.loaders[class] = l
	}
	return l
}

// Pager returns the paginated loader of collection, whose items are of class.
// Loaded items are also merged into the keyed cache of class, so lookups of
// paged resources need no round trip.
func (s *Session) Pager(collection, class string) *Pager {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pagers[collection]
	if !ok {
		p = newPager(s.deps, collection, class, s.cacheLocked(class))
		s.pagers[collection] = p
	}
	return p
}

// Transactions pages through all transactions.
func (s *Session) Transactions() *Pager { return s.Pager(ClassTransactions, ClassTransactions) }

// Uncategorised pages through transactions that have no category.
func (s *Session) Uncategorised() *Pager {
	return s.Pager(CollectionUncategorised, ClassTransactions)
}

// Categories returns the typed category facade.
func (s *Session) Categories() *Categories {
	return &Categories{
		Loader:     s.Loader(ClassCategories),
		Resolver:   s.Resolver(ClassCategories),
		Reconciler: s.Reconciler(ClassCategories),
	}
}

func (s *Session) Dashboards() *Loader { return s.Loader(ClassDashboards) }

func (s *Session) AnalysisTimePeriods() *Loader { return s.Loader(ClassAnalysisTimePeriods) }
