// Package purge evicts cached API responses when content changes. A
// Notifier turns store events into detail URLs, one per allowed host, and
// hands each URL to every configured Purger.
package purge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/web/router"
)

// Purger evicts one URL from a cache
type Purger interface {
	Purge(ctx context.Context, rawURL string) error
}

// URLBuilder reverses named routes; *router.Router implements it
type URLBuilder interface {
	URL(name string, params map[string]string) (string, error)
}

// Config holds notifier settings
type Config struct {
	// Hosts are the hostnames (with optional port) the API is served on
	Hosts []string
	// Scheme defaults to http
	Scheme string
	// Timeout bounds the purges triggered by one event
	Timeout time.Duration
}

// Notifier purges the detail URLs of changed objects
type Notifier struct {
	config  Config
	routes  URLBuilder
	purgers []Purger
	logger  *zap.Logger
}

// NewNotifier creates a notifier. A nil logger discards output.
func NewNotifier(config Config, routes URLBuilder, logger *zap.Logger, purgers ...Purger) *Notifier {
	if config.Scheme == "" {
		config.Scheme = "http"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		config:  config,
		routes:  routes,
		purgers: purgers,
		logger:  logger,
	}
}

// URLs returns the absolute detail URLs of an object on every host
func (n *Notifier) URLs(kind content.Kind, id int) ([]string, error) {
	path, err := n.routes.URL(router.DetailRouteName(kind.Collection()), map[string]string{"id": strconv.Itoa(id)})
	if err != nil {
		return nil, fmt.Errorf("build %s detail url: %w", kind, err)
	}

	urls := make([]string, 0, len(n.config.Hosts))
	for _, host := range n.config.Hosts {
		urls = append(urls, n.config.Scheme+"://"+host+path)
	}
	return urls, nil
}

// Purge evicts an object from every purger, continuing past failures
func (n *Notifier) Purge(ctx context.Context, kind content.Kind, id int) error {
	urls, err := n.URLs(kind, id)
	if err != nil {
		return err
	}

	var errs []error
	for _, u := range urls {
		for _, p := range n.purgers {
			if err := p.Purge(ctx, u); err != nil {
				errs = append(errs, fmt.Errorf("purge %s: %w", u, err))
				continue
			}
			n.logger.Debug("purged", zap.String("url", u), zap.String("purger", fmt.Sprintf("%T", p)))
		}
	}
	return errors.Join(errs...)
}

// Handle is a content.EventHandler. Failures are logged, never returned to
// the store that raised the event.
func (n *Notifier) Handle(ev content.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.config.Timeout)
	defer cancel()

	if err := n.Purge(ctx, ev.Kind, ev.ID); err != nil {
		n.logger.Warn("cache purge failed",
			zap.String("kind", ev.Kind.String()),
			zap.Int("id", ev.ID),
			zap.String("action", ev.Action.String()),
			zap.Error(err),
		)
		return
	}
	n.logger.Info("cache purged",
		zap.String("kind", ev.Kind.String()),
		zap.Int("id", ev.ID),
		zap.String("action", ev.Action.String()),
	)
}
