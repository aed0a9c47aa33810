package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// buildURL resolves endpoint against baseURL; absolute URLs pass through
func buildURL(baseURL, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return baseURL + endpoint
}

// withQuery appends params to endpoint as a sorted query string. Nil values are skipped.
func withQuery(endpoint string, params map[string]any) string {
	values := url.Values{}
	for k, v := range params {
		if v == nil {
			continue
		}
		values.Add(k, fmt.Sprint(v))
	}
	if len(values) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + values.Encode()
}

// compactParams drops nil values
func compactParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// cacheKey derives the logical key "<url>_<json(params)>". encoding/json
// emits map keys sorted, so equal parameter sets always collide.
func cacheKey(fullURL string, params map[string]any) string {
	if len(params) == 0 {
		return fullURL + "_"
	}
	b, err := json.Marshal(params)
	if err != nil {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, params[k])
		}
		return fullURL + "_" + strings.Join(parts, "&")
	}
	return fullURL + "_" + string(b)
}

// resourceRoot returns the URL of the first path segment below baseURL that
// endpoint addresses, e.g. "/products/42?x=1" -> "<base>/products".
// It returns "" when no segment can be derived.
func resourceRoot(baseURL, endpoint string) string {
	root := baseURL
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if baseURL != "" && strings.HasPrefix(endpoint, baseURL) {
			endpoint = strings.TrimPrefix(endpoint, baseURL)
		} else {
			u, err := url.Parse(endpoint)
			if err != nil {
				return ""
			}
			root = u.Scheme + "://" + u.Host
			endpoint = u.Path
		}
	}

	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	for _, seg := range strings.Split(endpoint, "/") {
		if seg != "" {
			return root + "/" + seg
		}
	}
	return ""
}

// underRoot reports whether a logical cache key belongs to root
func underRoot(key, root string) bool {
	if !strings.HasPrefix(key, root) {
		return false
	}
	rest := key[len(root):]
	return rest == "" || strings.ContainsRune("/?_", rune(rest[0]))
}
