// Package config reads finsync settings from the environment and builds the
// pieces a process needs: session options, the logger and the shared tier.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/finsync"
	"github.com/unkn0wn-root/finsync/codec"
	"github.com/unkn0wn-root/finsync/genstore"
	"github.com/unkn0wn-root/finsync/jsonapi"
	zaplog "github.com/unkn0wn-root/finsync/log/zap"
	"github.com/unkn0wn-root/finsync/provider"
	"github.com/unkn0wn-root/finsync/provider/bigcache"
	"github.com/unkn0wn-root/finsync/provider/redis"
	"github.com/unkn0wn-root/finsync/provider/ristretto"
)

// Shared tier backends.
const (
	SharedNone      = "none"
	SharedRistretto = "ristretto"
	SharedBigcache  = "bigcache"
	SharedRedis     = "redis"
)

// Config holds process settings.
type Config struct {
	BaseURL      string        `env:"FINSYNC_BASE_URL,required"`
	Prefix       string        `env:"FINSYNC_PREFIX" envDefault:"/api"`
	PageSize     int           `env:"FINSYNC_PAGE_SIZE" envDefault:"30"`
	Timeout      time.Duration `env:"FINSYNC_TIMEOUT" envDefault:"30s"`
	Format       string        `env:"FINSYNC_FORMAT" envDefault:"json"`
	DateLocation string        `env:"FINSYNC_DATE_LOCATION" envDefault:"Local"`

	Shared          string        `env:"FINSYNC_SHARED" envDefault:"none"`
	SharedNamespace string        `env:"FINSYNC_SHARED_NAMESPACE" envDefault:"finsync"`
	SharedFormat    string        `env:"FINSYNC_SHARED_FORMAT" envDefault:"cbor"`
	RedisAddr       string        `env:"FINSYNC_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisGenTTL     time.Duration `env:"FINSYNC_REDIS_GEN_TTL" envDefault:"0s"`

	LogLevel  string `env:"FINSYNC_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FINSYNC_LOG_FORMAT" envDefault:"json"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("config: FINSYNC_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if _, err := codec.For[jsonapi.Resource](c.Format); err != nil {
		return fmt.Errorf("config: FINSYNC_FORMAT: %w", err)
	}
	switch c.Shared {
	case SharedNone, SharedRistretto, SharedBigcache, SharedRedis:
	default:
		return fmt.Errorf("config: FINSYNC_SHARED: unknown backend %q", c.Shared)
	}
	if _, err := time.LoadLocation(c.DateLocation); err != nil {
		return fmt.Errorf("config: FINSYNC_DATE_LOCATION: %w", err)
	}
	return nil
}

// NewLogger builds the process logger. Logs go to stderr.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: FINSYNC_LOG_LEVEL: %w", err)
	}
	var zc zap.Config
	switch strings.ToLower(c.LogFormat) {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("config: FINSYNC_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// NewShared builds the shared tier selected by FINSYNC_SHARED, or nil for
// "none". The caller owns the result and must Close it.
func (c Config) NewShared(ctx context.Context, log finsync.Logger, hooks finsync.Hooks) (*finsync.Shared, error) {
	if c.Shared == SharedNone {
		return nil, nil
	}
	cd, err := codec.For[jsonapi.Resource](c.SharedFormat)
	if err != nil {
		return nil, fmt.Errorf("config: FINSYNC_SHARED_FORMAT: %w", err)
	}
	p, gs, err := c.newProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: shared %s: %w", c.Shared, err)
	}
	return newShared(ctx, finsync.SharedOptions{
		Namespace: c.SharedNamespace,
		Provider:  p,
		GenStore:  gs,
		Codec:     cd,
		Logger:    log,
		Hooks:     hooks,
	})
}

// newShared builds the tier and closes opts.Provider when that fails, since
// the caller never receives it.
func newShared(ctx context.Context, opts finsync.SharedOptions) (*finsync.Shared, error) {
	s, err := finsync.NewShared(opts)
	if err != nil {
		if opts.Provider != nil {
			_ = opts.Provider.Close(ctx)
		}
		return nil, err
	}
	return s, nil
}

// newProvider builds the byte store of the selected backend. A nil GenStore
// leaves generations in-process.
func (c Config) newProvider(ctx context.Context) (provider.Provider, genstore.GenStore, error) {
	switch c.Shared {
	case SharedRistretto:
		p, err := ristretto.New(ristretto.Config{})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case SharedBigcache:
		p, err := bigcache.New(ctx, bigcache.Config{})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case SharedRedis:
		// generations live next to the entries so every process agrees on them
		rdb := goredis.NewClient(&goredis.Options{Addr: c.RedisAddr})
		p, err := redis.New(redis.Config{Client: rdb, CloseClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		gs, err := genstore.NewRedis(genstore.RedisConfig{
			Client:    rdb,
			Namespace: c.SharedNamespace,
			TTL:       c.RedisGenTTL,
		})
		if err != nil {
			_ = p.Close(ctx)
			return nil, nil, err
		}
		return p, gs, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", c.Shared)
}

// SessionOptions returns finsync options for this config.
func (c Config) SessionOptions(log *zap.Logger, hooks finsync.Hooks, shared *finsync.Shared) (finsync.Options, error) {
	loc, err := time.LoadLocation(c.DateLocation)
	if err != nil {
		return finsync.Options{}, fmt.Errorf("config: FINSYNC_DATE_LOCATION: %w", err)
	}
	opts := finsync.Options{
		BaseURL:      c.BaseURL,
		Prefix:       c.Prefix,
		Timeout:      c.Timeout,
		Format:       c.Format,
		PageSize:     c.PageSize,
		DateLocation: loc,
		Shared:       shared,
		Hooks:        hooks,
	}
	if log != nil {
		opts.Logger = zaplog.ZapLogger{L: log}
	}
	return opts, nil
}
