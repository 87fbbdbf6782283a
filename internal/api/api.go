// Package api implements the read-only content endpoints: parameter
// validation, filtering, ordering, search dispatch, pagination and
// serialization for pages, images and documents.
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
	"github.com/conduit-lang/contentapi/internal/serialize"
	"github.com/conduit-lang/contentapi/internal/web/response"
	"github.com/conduit-lang/contentapi/internal/web/router"
)

// Version is the path segment every endpoint is mounted under
const Version = "/v1"

// Store is the storage the endpoints read from
type Store interface {
	query.Source
	// Page returns any page by id, published or not
	Page(ctx context.Context, id int) (*content.Page, error)
	// Sites returns the configured sites
	Sites(ctx context.Context) ([]*content.Site, error)
}

// Options configures an API
type Options struct {
	Registry *content.Registry
	Store    Store
	// Search may be nil, which disables search
	Search SearchBackend
	Config Config
	Logger *zap.Logger
}

// API owns the endpoints of the three collections
type API struct {
	registry   *content.Registry
	store      Store
	search     SearchBackend
	config     Config
	logger     *zap.Logger
	serializer *serialize.Serializer
	renderer   *response.Renderer
	endpoints  []*Endpoint
}

// New validates opts and builds the endpoints
func New(opts Options) (*API, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("api: registry is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if opts.Config.LimitMax < 0 {
		return nil, fmt.Errorf("api: limit max must not be negative, got %d", opts.Config.LimitMax)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &API{
		registry:   opts.Registry,
		store:      opts.Store,
		search:     opts.Search,
		config:     opts.Config,
		logger:     logger,
		serializer: serialize.New(opts.Registry),
		renderer:   response.NewRendererWithPrettyPrint(),
	}
	for _, kind := range []content.Kind{content.KindPage, content.KindImage, content.KindDocument} {
		a.endpoints = append(a.endpoints, newEndpoint(a, kind))
	}
	return a, nil
}

// Endpoints returns the endpoints in registration order
func (a *API) Endpoints() []*Endpoint {
	return append([]*Endpoint(nil), a.endpoints...)
}

// Register mounts every collection under Version on r
func (a *API) Register(r *router.Router) error {
	var err error
	r.Group(Version, func(g *router.Router) {
		for _, e := range a.endpoints {
			err = g.RegisterCollection(
				router.CollectionDefinition{Name: e.kind.Collection()},
				router.CollectionHandlers{List: e.Listing, Detail: e.Detail},
			)
			if err != nil {
				return
			}
		}
	})
	return err
}
