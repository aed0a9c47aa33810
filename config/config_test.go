package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deeplooplabs/crystalcache/cache"
	"github.com/deeplooplabs/crystalcache/client"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	got := FromLookup(mapLookup(nil))
	want := &Env{
		AppEnv:     "development",
		APIBaseURL: DefaultAPIBaseURL,
		LogLevel:   "info",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromLookup() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromLookup_Aliases(t *testing.T) {
	got := FromLookup(mapLookup(map[string]string{
		"NODE_ENV":                 "production",
		"NEXT_PUBLIC_API_BASE_URL": "https://api.crystal.example/api/",
		"CACHE_SQLITE_PATH":        "/var/cache/crystal.db",
		"LOG_LEVEL":                "DEBUG",
	}))
	want := &Env{
		AppEnv:     "production",
		APIBaseURL: "https://api.crystal.example/api",
		SQLitePath: "/var/cache/crystal.db",
		LogLevel:   "debug",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromLookup() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.IsProduction())
}

func TestLoad_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	base := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("CRYSTAL_TEST_A=local\n"), 0o644))
	require.NoError(t, os.WriteFile(base, []byte("CRYSTAL_TEST_A=base\nCRYSTAL_TEST_B=base\n# comment\n"), 0o644))
	t.Setenv("CRYSTAL_TEST_B", "process")
	t.Setenv("CRYSTAL_TEST_A", "")
	os.Unsetenv("CRYSTAL_TEST_A")

	loaded, err := Load(local, filepath.Join(dir, ".env.production"), base)
	require.NoError(t, err)
	assert.Equal(t, []string{local, base}, loaded)
	assert.Equal(t, "local", os.Getenv("CRYSTAL_TEST_A"))
	assert.Equal(t, "process", os.Getenv("CRYSTAL_TEST_B"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		errors   int
		warnings []string
	}{
		{
			name: "valid development",
			env: map[string]string{
				"APP_ENV":      "development",
				"API_BASE_URL": "http://localhost:3001/api",
			},
		},
		{
			name:   "missing required",
			env:    map[string]string{},
			errors: 2,
		},
		{
			name: "bad values",
			env: map[string]string{
				"APP_ENV":          "staging",
				"API_BASE_URL":     "localhost:3001",
				"LOG_LEVEL":        "verbose",
				"CACHE_REDIS_ADDR": "redis",
				"PORT":             "eighty",
			},
			errors: 5,
		},
		{
			name: "production over plain http",
			env: map[string]string{
				"NODE_ENV":             "production",
				"API_BASE_URL":         "http://localhost:3001/api",
				"NEXT_PUBLIC_SITE_URL": "http://localhost:3000",
			},
			warnings: []string{
				"production must not use a localhost API address",
				"production must not use a localhost site address",
				"production should use HTTPS",
			},
		},
		{
			name: "development against remote api",
			env: map[string]string{
				"APP_ENV":      "development",
				"API_BASE_URL": "https://api.crystal.example",
			},
			warnings: []string{"development should use a localhost API address"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(mapLookup(tt.env))
			assert.Equal(t, tt.errors, report.ErrorCount())
			assert.Equal(t, tt.errors == 0, report.OK())
			if diff := cmp.Diff(tt.warnings, report.Warnings); diff != "" {
				t.Errorf("warnings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseClients(t *testing.T) {
	data := `
[[client]]
name = "product"
backend = "localStorage"
ttl = "10m"
max_size = 50
key_prefix = "product_api_"
timeout = "5s"
retries = 1
invalidation = "prefix"

[client.headers]
X-Store = "crystal-shop"

[[client]]
name = "api"

[[warmup]]
client = "product"
endpoint = "/products"
params = { limit = 10 }
`
	file, err := ParseClients([]byte(data))
	require.NoError(t, err)
	require.Len(t, file.Clients, 2)
	require.Len(t, file.WarmUp, 1)

	product := file.Clients[0]
	assert.Equal(t, 10*time.Minute, product.TTL.Duration)
	assert.Equal(t, map[string]string{"X-Store": "crystal-shop"}, product.Headers)
	assert.Equal(t, int64(10), file.WarmUp[0].Params["limit"])

	config, err := product.ClientConfig("https://api.crystal.example")
	require.NoError(t, err)
	assert.Equal(t, "https://api.crystal.example", config.BaseURL)
	assert.Equal(t, cache.BackendLocal, config.Cache.Backend)
	assert.Equal(t, 50, config.Cache.MaxSize)
	assert.Equal(t, "product_api_", config.Cache.KeyPrefix)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 1, config.RetryConfig.MaxRetries)
	assert.Equal(t, client.InvalidatePrefix, config.Invalidation)

	api, err := file.Clients[1].ClientConfig(DefaultAPIBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "api_", api.Cache.KeyPrefix)
	assert.Equal(t, 5*time.Minute, api.Cache.TTL)
	assert.Equal(t, client.InvalidateAll, api.Invalidation)
}

func TestParseClients_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"no name", "[[client]]\nttl = \"1m\"", "has no name"},
		{"duplicate", "[[client]]\nname = \"api\"\n[[client]]\nname = \"api\"", "duplicate client"},
		{"bad backend", "[[client]]\nname = \"api\"\nbackend = \"indexeddb\"", "unknown storage backend"},
		{"bad duration", "[[client]]\nname = \"api\"\nttl = \"soon\"", "parse clients"},
		{"bad policy", "[[client]]\nname = \"api\"\ninvalidation = \"some\"", "unknown invalidation policy"},
		{"unknown warm-up client", "[[client]]\nname = \"api\"\n[[warmup]]\nclient = \"search\"\nendpoint = \"/q\"", "unknown client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClients([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestCheckPrefixes(t *testing.T) {
	local := func(name, prefix string) ClientDef {
		return ClientDef{Name: name, Backend: "local", KeyPrefix: prefix}
	}

	tests := []struct {
		name    string
		defs    []ClientDef
		wantErr bool
	}{
		{"defaults", DefaultClients(), false},
		{"duplicate prefix", []ClientDef{local("a", "shared_"), local("b", "shared_")}, true},
		{"nested prefix", []ClientDef{local("api", "api_"), local("api_request", "")}, true},
		{"nested explicit prefix", []ClientDef{local("catalog", "cat_"), local("carts", "cat_request_")}, true},
		{"distinct prefixes", []ClientDef{local("product", "product_api_"), local("orders", "orders_")}, false},
		{"different media", []ClientDef{local("a", "shared_"), {Name: "b", Backend: "session", KeyPrefix: "shared_"}}, false},
		{"memory clients", []ClientDef{{Name: "a", KeyPrefix: "shared_"}, {Name: "b", KeyPrefix: "shared_"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPrefixes(tt.defs)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPrefixConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseClients_PrefixConflict(t *testing.T) {
	data := `
[[client]]
name = "api"
backend = "local"

[[client]]
name = "api_request"
backend = "local"
`
	_, err := ParseClients([]byte(data))
	assert.ErrorIs(t, err, ErrPrefixConflict)
}

func TestDefaultClients(t *testing.T) {
	defs := DefaultClients()
	require.Len(t, defs, 2)

	product, err := defs[1].ClientConfig(DefaultAPIBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "product", product.Name)
	assert.Equal(t, 10*time.Minute, product.Cache.TTL)
	assert.Equal(t, cache.BackendLocal, product.Cache.Backend)
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := Duration{90 * time.Second}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
