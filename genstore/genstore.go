// Package genstore keeps per-key generation counters for the shared tier.
//
// A generation is bumped on every confirmed write of a resource. Shared-tier
// entries carry the generation they were written under, and readers drop any
// entry whose generation no longer matches. Use Local for a single process and
// Redis when several dashboard processes share one tier.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
