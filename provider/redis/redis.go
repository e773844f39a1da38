// Package redis stores shared-tier entries in Redis, so every dashboard
// process pointed at the same server reuses the resources another process
// already fetched.
//
// Entries are written without expiry; staleness is decided by generations,
// which config keeps in the same Redis through genstore.Redis.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/finsync/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Config configures a Redis provider.
type Config struct {
	Client goredis.UniversalClient
	// CloseClient hands the client over: Close then closes it too.
	CloseClient bool
}

// Redis is a provider.Provider over a go-redis client.
type Redis struct {
	rdb  goredis.UniversalClient
	owns bool
}

var _ provider.Provider = (*Redis)(nil)

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, owns: cfg.CloseClient}, nil
}

// Client is the client entries are stored through.
func (r *Redis) Client() goredis.UniversalClient { return r.rdb }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return raw, true, nil
}

// Set ignores cost; Redis has no admission policy to feed it to.
func (r *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := r.rdb.Set(ctx, key, value, max(ttl, 0)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Close closes an owned client. Closing one that is already closed is not an
// error.
func (r *Redis) Close(context.Context) error {
	if !r.owns {
		return nil
	}
	if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
