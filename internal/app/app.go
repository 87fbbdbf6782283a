// Package app wires configuration, storage, caching and purging into the
// HTTP handler served by the contentapi command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/api"
	"github.com/conduit-lang/contentapi/internal/config"
	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/purge"
	"github.com/conduit-lang/contentapi/internal/search"
	"github.com/conduit-lang/contentapi/internal/store/fixtures"
	"github.com/conduit-lang/contentapi/internal/store/memory"
	"github.com/conduit-lang/contentapi/internal/store/sqlstore"
	"github.com/conduit-lang/contentapi/internal/web/cache"
	"github.com/conduit-lang/contentapi/internal/web/middleware"
	"github.com/conduit-lang/contentapi/internal/web/ratelimit"
	"github.com/conduit-lang/contentapi/internal/web/response"
	"github.com/conduit-lang/contentapi/internal/web/router"
)

// HealthPath answers liveness probes outside the API prefix
const HealthPath = "/health"

// App is a fully wired API
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Dataset  *fixtures.Dataset
	Registry *content.Registry
	Store    api.Store
	Cache    cache.Cache
	Notifier *purge.Notifier

	router  *router.Router
	handler http.Handler
	closers []func() error
}

// Option customizes New
type Option func(*options)

type options struct {
	store api.Store
	cache cache.Cache
}

// WithStore uses store instead of the one named by store.driver
func WithStore(store api.Store) Option {
	return func(o *options) { o.store = store }
}

// WithCache uses c instead of the one named by cache.backend
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// New loads the site file and builds the store, cache, API and router
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ds, err := fixtures.Load(cfg.Store.SiteFile)
	if err != nil {
		return nil, err
	}
	reg, err := ds.Registry()
	if err != nil {
		return nil, fmt.Errorf("invalid types in %s: %w", cfg.Store.SiteFile, err)
	}

	a := &App{Config: cfg, Logger: logger, Dataset: ds, Registry: reg}

	a.Store = o.store
	if a.Store == nil {
		if a.Store, err = a.openStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Cache = o.cache
	if a.Cache == nil {
		if a.Cache, err = a.openCache(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if err := a.buildRouter(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildNotifier(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.handler
}

// Router returns the router, for route listing and URL reversal
func (a *App) Router() *router.Router {
	return a.router
}

// Close releases the store and cache connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) (api.Store, error) {
	switch a.Config.Store.Driver {
	case config.DriverMemory:
		s := memory.New()
		a.Dataset.Seed(s)
		a.Logger.Info("loaded site into memory",
			zap.String("site_file", a.Config.Store.SiteFile),
			zap.Int("pages", len(a.Dataset.Pages)),
			zap.Int("images", len(a.Dataset.Images)),
			zap.Int("documents", len(a.Dataset.Documents)),
		)
		return s, nil
	default:
		s, err := sqlstore.Open(ctx, a.Config.Store.Driver, a.Config.Store.DSN, a.Logger.Named("sqlstore"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	cc := cache.DefaultCacheConfig()
	cc.DefaultTTL = a.Config.Cache.TTL

	switch a.Config.Cache.Backend {
	case config.CacheMemory:
		c := cache.NewMemoryCacheWithConfig(cc)
		a.closers = append(a.closers, c.Close)
		return c, nil
	case config.CacheRedis:
		c, err := cache.NewRedisCacheWithConfig(ctx, cache.RedisConfig{Addr: a.Config.Cache.RedisAddr, CacheConfig: cc})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	}
	return nil, nil
}

func (a *App) buildRouter() error {
	var backend api.SearchBackend
	if a.Config.SearchEnabled {
		backend = search.NewDatabaseBackend(true)
	}

	contentAPI, err := api.New(api.Options{
		Registry: a.Registry,
		Store:    a.Store,
		Search:   backend,
		Config: api.Config{
			LimitMax:      a.Config.LimitMax,
			SearchEnabled: a.Config.SearchEnabled,
			BaseURL:       a.Config.BaseURL,
		},
		Logger: a.Logger.Named("api"),
	})
	if err != nil {
		return err
	}

	r := router.NewRouter()

	prefix := a.Config.Server.APIPrefix
	isAPI := middleware.PathPrefix(prefix + "/")
	r.Use(
		middleware.RequestID(),
		middleware.Logging(a.Logger.Named("http")),
		middleware.Recovery(a.Logger),
		middleware.Conditional(isAPI, middleware.CORS(a.Config.Server.CORSOrigins...)),
		middleware.Compression(),
		middleware.Timeout(a.Config.Server.RequestTimeout),
	)
	if a.Config.Server.RateLimit.Requests > 0 {
		r.Use(middleware.Conditional(isAPI, ratelimit.Middleware(a.newLimiter(), a.Logger.Named("ratelimit"))))
	}
	if a.Cache != nil {
		mc := cache.DefaultCacheMiddlewareConfig(a.Cache)
		mc.TTL = a.Config.Cache.TTL
		mc.Logger = a.Logger.Named("cache")
		r.Use(middleware.Conditional(isAPI, cache.CacheMiddleware(mc)))
	}

	router.SetupDefaultErrorHandlers(r)
	r.Get(HealthPath, a.health).Named("health")

	r.Group(prefix, func(g *router.Router) {
		err = contentAPI.Register(g)
	})
	if err != nil {
		return fmt.Errorf("failed to register api routes: %w", err)
	}

	a.router = r
	a.handler = r
	return nil
}

// newLimiter shares limits through Redis when the cache already uses it
func (a *App) newLimiter() ratelimit.Limiter {
	rl := a.Config.Server.RateLimit
	if a.Config.Cache.Backend == config.CacheRedis {
		client := redis.NewClient(&redis.Options{Addr: a.Config.Cache.RedisAddr})
		if l, err := ratelimit.NewRedisLimiter(client, rl.Requests, rl.Window); err == nil {
			a.closers = append(a.closers, client.Close)
			return l
		}
		client.Close()
	}
	tb := ratelimit.NewTokenBucket(rl.Requests, rl.Window, rl.Window)
	a.closers = append(a.closers, tb.Close)
	return tb
}

func (a *App) buildNotifier() error {
	var purgers []purge.Purger
	if a.Cache != nil {
		purgers = append(purgers, purge.NewCachePurger(a.Cache, cache.DefaultKeyGenerator()))
	}
	if len(a.Config.Purge.FrontendURLs) > 0 {
		p, err := purge.NewHTTPPurger(a.Config.Purge.FrontendURLs, nil)
		if err != nil {
			return err
		}
		purgers = append(purgers, p)
	}

	a.Notifier = purge.NewNotifier(
		purge.Config{Hosts: a.Config.Server.AllowedHosts},
		a.router,
		a.Logger.Named("purge"),
		purgers...,
	)

	if s, ok := a.Store.(*memory.Store); ok && len(purgers) > 0 {
		s.Subscribe(a.Notifier.Handle)
	}
	return nil
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if _, err := a.Store.Sites(r.Context()); err != nil {
		a.Logger.Warn("health check failed", zap.Error(err))
		response.RenderServiceUnavailable(w, "store unavailable")
		return
	}
	response.NewRenderer().JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
