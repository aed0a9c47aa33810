package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"leading slash", "/products", "http://localhost:3001/api/products"},
		{"no leading slash", "products", "http://localhost:3001/api/products"},
		{"absolute http", "http://cdn.example.com/img.json", "http://cdn.example.com/img.json"},
		{"absolute https", "https://cdn.example.com/img.json", "https://cdn.example.com/img.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildURL("http://localhost:3001/api", tt.endpoint))
		})
	}
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "/products", withQuery("/products", nil))
	assert.Equal(t, "/products", withQuery("/products", map[string]any{"q": nil}))
	assert.Equal(t, "/products?category=rings&limit=10",
		withQuery("/products", map[string]any{"limit": 10, "category": "rings"}))
	assert.Equal(t, "/products?sort=price&limit=5",
		withQuery("/products?sort=price", map[string]any{"limit": 5}))
}

func TestCacheKey(t *testing.T) {
	url := "http://localhost:3001/api/products"

	assert.Equal(t, url+"_", cacheKey(url, nil))
	assert.Equal(t, url+`_{"category":"rings","limit":10}`,
		cacheKey(url, map[string]any{"limit": 10, "category": "rings"}))
	assert.Equal(t,
		cacheKey(url, map[string]any{"a": 1, "b": 2}),
		cacheKey(url, map[string]any{"b": 2, "a": 1}),
	)
	assert.NotEqual(t, cacheKey(url, map[string]any{"limit": 10}), cacheKey(url, map[string]any{"limit": 20}))
}

func TestCacheKey_Unmarshalable(t *testing.T) {
	key := cacheKey("http://x/products", map[string]any{"b": func() {}, "a": 1})
	assert.Contains(t, key, "http://x/products_a=1&b=")
}

func TestResourceRoot(t *testing.T) {
	base := "http://localhost:3001/api"
	tests := []struct {
		endpoint string
		want     string
	}{
		{"/products/42", base + "/products"},
		{"products?limit=10", base + "/products"},
		{"/orders", base + "/orders"},
		{base + "/cart/items", base + "/cart"},
		{"https://other.example.com/wishlist/1", "https://other.example.com/wishlist"},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, resourceRoot(base, tt.endpoint))
		})
	}
}

func TestUnderRoot(t *testing.T) {
	root := "http://localhost:3001/api/products"

	assert.True(t, underRoot(root+"_", root))
	assert.True(t, underRoot(root+"/42_", root))
	assert.True(t, underRoot(root+"?limit=10_{\"limit\":10}", root))
	assert.True(t, underRoot(root, root))
	assert.False(t, underRoot("http://localhost:3001/api/productsets_", root))
	assert.False(t, underRoot("http://localhost:3001/api/categories_", root))
}
