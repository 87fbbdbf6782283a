package purge

import (
	"context"
	"fmt"
	"net/url"

	"github.com/conduit-lang/contentapi/internal/web/cache"
)

// CachePurger evicts every cached variant of a URL from the response cache
type CachePurger struct {
	cache cache.Cache
	keys  *cache.KeyGenerator
}

// NewCachePurger purges keys built by keys; nil selects the default generator
func NewCachePurger(c cache.Cache, keys *cache.KeyGenerator) *CachePurger {
	if keys == nil {
		keys = cache.DefaultKeyGenerator()
	}
	return &CachePurger{cache: c, keys: keys}
}

// Purge deletes the keys of rawURL's path on its host, whatever the query
func (p *CachePurger) Purge(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	_, err = p.cache.DeletePrefix(ctx, p.keys.PathKey(u.Host, u.Path))
	return err
}
