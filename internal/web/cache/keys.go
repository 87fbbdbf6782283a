package cache

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// KeyGenerator generates cache keys from HTTP requests. Keys stay readable
// ("http:<host><path>?<query sorted by key>") so a URL prefix selects every
// cached variant of a resource.
type KeyGenerator struct {
	// IncludeHost includes the request host; responses differ per site
	IncludeHost bool
	// IncludeQuery includes query parameters in the cache key
	IncludeQuery bool
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultKeyGenerator returns a default key generator
func DefaultKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		IncludeHost:  true,
		IncludeQuery: true,
		Prefix:       "http:",
	}
}

// GenerateKey generates a cache key for the given request
func (kg *KeyGenerator) GenerateKey(r *http.Request) string {
	key := kg.PathKey(r.Host, r.URL.Path)
	if kg.IncludeQuery && r.URL.RawQuery != "" {
		key += "?" + canonicalQuery(r.URL.Query())
	}
	return key
}

// PathKey returns the key prefix shared by every cached variant of path
func (kg *KeyGenerator) PathKey(host, path string) string {
	var b strings.Builder
	b.WriteString(kg.Prefix)
	if kg.IncludeHost {
		b.WriteString(strings.ToLower(host))
	}
	b.WriteString(path)
	return b.String()
}

// canonicalQuery sorts keys so equivalent queries share a key. Repeated
// values keep request order since only the first one is read.
func canonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range query[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}
