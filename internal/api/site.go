package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
)

// findSite picks the site serving a request: an exact hostname and port
// match, then a hostname match, then the default site. It returns nil when
// no site is configured, in which case pages are not scoped.
func findSite(sites []*content.Site, r *http.Request) *content.Site {
	hostname, port := splitHost(r)

	var byName, fallback *content.Site
	for _, s := range sites {
		if strings.EqualFold(s.Hostname, hostname) {
			if s.Port == port {
				return s
			}
			if byName == nil {
				byName = s
			}
		}
		if s.IsDefault && fallback == nil {
			fallback = s
		}
	}
	if byName != nil {
		return byName
	}
	return fallback
}

func splitHost(r *http.Request) (string, int) {
	port := 80
	if r.TLS != nil {
		port = 443
	}

	host, rawPort, err := net.SplitHostPort(r.Host)
	if err != nil {
		return r.Host, port
	}
	if p, err := strconv.Atoi(rawPort); err == nil {
		port = p
	}
	return host, port
}

// resolveSite loads the sites and selects the one serving r
func (a *API) resolveSite(ctx context.Context, r *http.Request) (*content.Site, error) {
	sites, err := a.store.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	return findSite(sites, r), nil
}

// baseURL returns scheme://host for absolute URLs: the configured base URL,
// else the site's root URL, else the request host
func (a *API) baseURL(site *content.Site, r *http.Request) string {
	raw := a.config.BaseURL
	if raw == "" && site != nil {
		raw = site.RootURL()
	}
	if raw == "" {
		raw = "http://" + r.Host
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
