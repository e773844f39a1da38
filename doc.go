// Package finsync keeps a personal-finance dashboard's view of its backend in
// sync. It mirrors server-held resources (transactions, categories, dashboards,
// analysis periods) in reactive in-memory caches and coordinates the network
// traffic that fills them.
//
// Components:
//   - Cache / List: reactive containers; observers get a snapshot on subscribe
//     and after every change.
//   - Deduplicator: collapses concurrent identical requests into one.
//   - Resolver: cache, then shared tier, then a deduplicated fetch by id.
//   - Pager: appends successive pages of a collection; drops Load while busy.
//   - Loader: loads a whole collection into a Cache.
//   - Reconciler: create/update round trips merged back into the Cache.
//   - Shared: optional process-level tier with CAS safety via per-key
//     generations, backed by any provider.Provider.
//
// A Session owns one of each per resource class:
//
//	s, _ := finsync.New(finsync.Options{BaseURL: "http://localhost:8080"})
//	cats := s.Categories()
//	_, _ = cats.Load(ctx)
//	c, _ := cats.Create(ctx, "Groceries", "")
//	_, _ = cats.Lookup(ctx, c.ID) // no round trip
//
// Observers run on the goroutine that changed the cache and must not mutate
// the same cache synchronously.
package finsync
