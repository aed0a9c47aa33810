package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/deeplooplabs/crystalcache/cache"
	"github.com/deeplooplabs/crystalcache/client"
)

// Duration is a time.Duration written as "5m" or "30s" in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ClientDef declares one named client
type ClientDef struct {
	Name         string            `toml:"name"`
	BaseURL      string            `toml:"base_url"`
	Backend      string            `toml:"backend"`
	TTL          Duration          `toml:"ttl"`
	MaxSize      int               `toml:"max_size"`
	KeyPrefix    string            `toml:"key_prefix"`
	Timeout      Duration          `toml:"timeout"`
	Retries      *int              `toml:"retries"`
	RetryDelay   Duration          `toml:"retry_delay"`
	Invalidation string            `toml:"invalidation"`
	Headers      map[string]string `toml:"headers"`
}

// WarmUpDef declares one warm-up request
type WarmUpDef struct {
	Client   string         `toml:"client"`
	Endpoint string         `toml:"endpoint"`
	Params   map[string]any `toml:"params"`
}

// File is the layout of a clients TOML file:
//
//	[[client]]
//	name = "product"
//	backend = "local"
//	ttl = "10m"
//
//	[[warmup]]
//	client = "product"
//	endpoint = "/products?limit=10"
type File struct {
	Clients []ClientDef `toml:"client"`
	WarmUp  []WarmUpDef `toml:"warmup"`
}

// LoadClients reads client definitions from a TOML file
func LoadClients(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file, err := ParseClients(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ParseClients decodes and checks client definitions
func ParseClients(data []byte) (*File, error) {
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse clients: %w", err)
	}

	seen := make(map[string]bool, len(file.Clients))
	for i, def := range file.Clients {
		if def.Name == "" {
			return nil, fmt.Errorf("client #%d has no name", i+1)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("duplicate client %q", def.Name)
		}
		seen[def.Name] = true
		if _, err := def.ClientConfig(DefaultAPIBaseURL); err != nil {
			return nil, err
		}
	}
	if err := CheckPrefixes(file.Clients); err != nil {
		return nil, err
	}
	for _, w := range file.WarmUp {
		if !seen[w.Client] {
			return nil, fmt.Errorf("warm-up target %s references unknown client %q", w.Endpoint, w.Client)
		}
	}
	return &file, nil
}

// ErrPrefixConflict is returned when two clients would read and clear each
// other's entries in a shared storage medium
var ErrPrefixConflict = errors.New("overlapping key prefixes")

// CheckPrefixes rejects local or session clients on the same backend whose
// key namespaces overlap: one namespace equal to, or a prefix of, another.
// Memory clients own their caches and are never in conflict.
func CheckPrefixes(defs []ClientDef) error {
	type owner struct {
		name    string
		backend cache.Backend
		spaces  []string
	}

	var owners []owner
	for _, def := range defs {
		cfg, err := def.ClientConfig(DefaultAPIBaseURL)
		if err != nil {
			return err
		}
		if cfg.Cache.Backend == cache.BackendMemory {
			continue
		}
		prefix := cfg.Cache.KeyPrefix
		owners = append(owners, owner{
			name:    def.Name,
			backend: cfg.Cache.Backend,
			spaces:  []string{prefix + client.RequestNamespace, prefix + client.MutationNamespace},
		})
	}

	for i, a := range owners {
		for _, b := range owners[i+1:] {
			if a.backend != b.backend {
				continue
			}
			for _, sa := range a.spaces {
				for _, sb := range b.spaces {
					if strings.HasPrefix(sa, sb) || strings.HasPrefix(sb, sa) {
						return fmt.Errorf("clients %q and %q in %s storage: %w (%q, %q)", a.name, b.name, a.backend, ErrPrefixConflict, sa, sb)
					}
				}
			}
		}
	}
	return nil
}

// DefaultClients returns the two catalog clients: a short-lived in-memory
// "api" client and a "product" client persisted to local storage
func DefaultClients() []ClientDef {
	return []ClientDef{
		{
			Name:      "api",
			Backend:   string(cache.BackendMemory),
			TTL:       Duration{5 * time.Minute},
			MaxSize:   100,
			KeyPrefix: "api_",
		},
		{
			Name:      "product",
			Backend:   string(cache.BackendLocal),
			TTL:       Duration{10 * time.Minute},
			MaxSize:   50,
			KeyPrefix: "product_api_",
		},
	}
}

// ClientConfig converts the definition, using baseURL when none is declared
func (d ClientDef) ClientConfig(baseURL string) (*client.Config, error) {
	if d.BaseURL != "" {
		baseURL = d.BaseURL
	}
	config := client.NewConfig(d.Name, baseURL)

	backend, err := cache.ParseBackend(d.Backend)
	if err != nil {
		return nil, fmt.Errorf("client %q: %w", d.Name, err)
	}
	config.WithBackend(backend)

	if d.TTL.Duration > 0 {
		config.WithTTL(d.TTL.Duration)
	}
	if d.MaxSize > 0 {
		config.WithMaxSize(d.MaxSize)
	}
	if d.KeyPrefix != "" {
		config.WithKeyPrefix(d.KeyPrefix)
	} else {
		config.WithKeyPrefix(d.Name + "_")
	}
	if d.Timeout.Duration > 0 {
		config.WithTimeout(d.Timeout.Duration)
	}
	if d.Retries != nil {
		config.RetryConfig.MaxRetries = *d.Retries
	}
	if d.RetryDelay.Duration > 0 {
		config.RetryConfig.InitialBackoff = d.RetryDelay.Duration
	}
	for k, v := range d.Headers {
		config.WithHeader(k, v)
	}

	switch d.Invalidation {
	case "", "all":
		config.WithInvalidation(client.InvalidateAll)
	case "prefix":
		config.WithInvalidation(client.InvalidatePrefix)
	default:
		return nil, fmt.Errorf("client %q: unknown invalidation policy %q", d.Name, d.Invalidation)
	}
	return config, nil
}
