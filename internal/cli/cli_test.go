package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("NODE_ENV", "")
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "")
	t.Setenv("NEXT_PUBLIC_SITE_URL", "")
	t.Setenv("CACHE_SQLITE_PATH", filepath.Join(t.TempDir(), "cache.db"))
	t.Setenv("CACHE_REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PORT", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(&out, io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newCatalogServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var products atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		products.Add(1)
		w.Write([]byte(`[{"id":1,"name":"Citrine"}]`))
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["rings","pendants"]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &products
}

func TestSetVersion(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	SetVersion("1.2.0")
	assert.Equal(t, "1.2.0", version)
}

func TestGet_PrintsResponse(t *testing.T) {
	server, _ := newCatalogServer(t)
	setTestEnv(t, server.URL)

	out, err := execute(t, "get", "/categories")
	require.NoError(t, err)
	assert.Contains(t, out, `"pendants"`)
}

func TestGet_ProductCacheSurvivesSessions(t *testing.T) {
	server, products := newCatalogServer(t)
	setTestEnv(t, server.URL)

	for range 2 {
		out, err := execute(t, "get", "--client", "product", "/products", "--param", "limit=10")
		require.NoError(t, err)
		assert.Contains(t, out, "Citrine")
	}
	assert.Equal(t, int32(1), products.Load())

	_, err := execute(t, "clear")
	require.NoError(t, err)

	_, err = execute(t, "get", "--client", "product", "/products", "--param", "limit=10")
	require.NoError(t, err)
	assert.Equal(t, int32(2), products.Load())
}

func TestGet_HitsWarmedEntry(t *testing.T) {
	server, products := newCatalogServer(t)
	setTestEnv(t, server.URL)

	out, err := execute(t, "warm-up")
	require.NoError(t, err)
	assert.Contains(t, out, "product /products")
	require.Equal(t, int32(1), products.Load())

	out, err = execute(t, "get", "--client", "product", "/products", "--param", "limit=10")
	require.NoError(t, err)
	assert.Contains(t, out, "Citrine")
	assert.Equal(t, int32(1), products.Load())
}

func TestParamValue(t *testing.T) {
	assert.Equal(t, 10, paramValue("10"))
	assert.Equal(t, 2.5, paramValue("2.5"))
	assert.Equal(t, true, paramValue("true"))
	assert.Equal(t, "rose-quartz", paramValue("rose-quartz"))
}

func TestGet_UnknownClient(t *testing.T) {
	server, _ := newCatalogServer(t)
	setTestEnv(t, server.URL)

	_, err := execute(t, "get", "--client", "search", "/products")
	assert.ErrorContains(t, err, `unknown client "search"`)
}

func TestStats_JSON(t *testing.T) {
	server, _ := newCatalogServer(t)
	setTestEnv(t, server.URL)

	out, err := execute(t, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"product"`)
	assert.Contains(t, out, `"request_cache"`)
}

func TestEnvValidate(t *testing.T) {
	setTestEnv(t, "http://localhost:3001/api")

	out, err := execute(t, "env", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	t.Setenv("APP_ENV", "staging")
	t.Setenv("PORT", "eighty")
	out, err = execute(t, "env", "validate")
	require.ErrorIs(t, err, errValidation)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "PORT has an invalid format")
}
