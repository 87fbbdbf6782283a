package purge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MethodPurge is the request method frontend caches accept for eviction
const MethodPurge = "PURGE"

// HTTPPurger sends PURGE requests to frontend caches such as Varnish. The
// request goes to the cache's address with the original Host header.
type HTTPPurger struct {
	locations []*url.URL
	client    *http.Client
}

// NewHTTPPurger creates a purger for the given cache base URLs
func NewHTTPPurger(locations []string, client *http.Client) (*HTTPPurger, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	p := &HTTPPurger{client: client}
	for _, loc := range locations {
		u, err := url.Parse(loc)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid frontend cache url %q", loc)
		}
		p.locations = append(p.locations, u)
	}
	return p, nil
}

// Purge sends one PURGE request per frontend cache
func (p *HTTPPurger) Purge(ctx context.Context, rawURL string) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	for _, loc := range p.locations {
		u := *target
		u.Scheme = loc.Scheme
		u.Host = loc.Host

		req, err := http.NewRequestWithContext(ctx, MethodPurge, u.String(), nil)
		if err != nil {
			return err
		}
		req.Host = target.Host

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("purge via %s: %w", loc.Host, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("purge via %s: unexpected status %d", loc.Host, resp.StatusCode)
		}
	}
	return nil
}
