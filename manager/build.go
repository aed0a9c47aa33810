package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deeplooplabs/crystalcache/cache"
	"github.com/deeplooplabs/crystalcache/client"
	"github.com/deeplooplabs/crystalcache/config"
	"github.com/deeplooplabs/crystalcache/storage"
)

// Stores are the media behind persistent clients
type Stores struct {
	// Local survives restarts (SQLite file or Redis)
	Local storage.Storage
	// Session lives as long as the process
	Session storage.Storage
}

// Close closes both media
func (s Stores) Close() error {
	var errs []error
	if s.Local != nil {
		errs = append(errs, s.Local.Close())
	}
	if s.Session != nil {
		errs = append(errs, s.Session.Close())
	}
	return errors.Join(errs...)
}

// DefaultSQLitePath returns the per-user cache database location
func DefaultSQLitePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "crystalcache", "cache.db")
}

// OpenStores opens the local medium selected by env: Redis when
// CACHE_REDIS_ADDR is set, otherwise a SQLite file. The session medium is
// always an in-process map.
func OpenStores(ctx context.Context, env *config.Env) (Stores, error) {
	stores := Stores{Session: storage.NewMap()}

	if env.RedisAddr != "" {
		r, err := storage.NewRedis(ctx, storage.RedisConfig{Addr: env.RedisAddr})
		if err != nil {
			return Stores{}, err
		}
		stores.Local = r
		return stores, nil
	}

	path := env.SQLitePath
	if path == "" {
		path = DefaultSQLitePath()
	}
	s, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return Stores{}, err
	}
	stores.Local = s
	return stores, nil
}

// Build creates a manager with one client per definition. Relative clients
// use baseURL. Local and session clients draw on stores.
func Build(baseURL string, defs []config.ClientDef, stores Stores, opts []Option, clientOpts ...client.Option) (*Manager, error) {
	if err := config.CheckPrefixes(defs); err != nil {
		return nil, err
	}

	m := New(opts...)
	if stores.Session == nil {
		stores.Session = storage.NewMap()
	}

	for _, def := range defs {
		cfg, err := def.ClientConfig(baseURL)
		if err != nil {
			m.Close()
			return nil, err
		}

		var store storage.Storage
		switch cfg.Cache.Backend {
		case cache.BackendLocal:
			store = stores.Local
		case cache.BackendSession:
			store = stores.Session
		}
		if store == nil && cfg.Cache.Backend != cache.BackendMemory {
			m.Close()
			return nil, fmt.Errorf("client %q: no %s storage configured", def.Name, cfg.Cache.Backend)
		}

		optsForClient := append([]client.Option{client.WithStorage(store)}, clientOpts...)
		c, err := client.New(cfg, optsForClient...)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("client %q: %w", def.Name, err)
		}
		m.Register(c)
	}
	return m, nil
}

// NewDefault builds the catalog's "api" and "product" clients
func NewDefault(baseURL string, stores Stores, clientOpts ...client.Option) (*Manager, error) {
	return Build(baseURL, config.DefaultClients(), stores, nil, clientOpts...)
}
