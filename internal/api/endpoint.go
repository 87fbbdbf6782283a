package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
	"github.com/conduit-lang/contentapi/internal/serialize"
	"github.com/conduit-lang/contentapi/internal/web/middleware"
	"github.com/conduit-lang/contentapi/internal/web/response"
	"github.com/conduit-lang/contentapi/internal/web/router"
)

// Endpoint serves the listing and detail views of one kind
type Endpoint struct {
	api    *API
	kind   content.Kind
	extras []string
}

func newEndpoint(a *API, kind content.Kind) *Endpoint {
	e := &Endpoint{api: a, kind: kind}
	if kind == content.KindPage {
		e.extras = []string{ParamType, ParamChildOf}
	}
	return e
}

// Kind returns the kind of object the endpoint serves
func (e *Endpoint) Kind() content.Kind {
	return e.kind
}

// Listing handles GET /<collection>/
func (e *Endpoint) Listing(w http.ResponseWriter, r *http.Request) {
	e.serve(w, r, e.listing)
}

// Detail handles GET /<collection>/<id>/
func (e *Endpoint) Detail(w http.ResponseWriter, r *http.Request) {
	e.serve(w, r, e.detail)
}

// serve renders the view's result or converts its error into the JSON
// envelope. Nothing is written before the view returns.
func (e *Endpoint) serve(w http.ResponseWriter, r *http.Request, view func(*http.Request) (any, error)) {
	body, err := view(r)
	if err == nil {
		var encoded []byte
		encoded, err = e.api.renderer.Marshal(body)
		if err == nil {
			w.Header().Set("Content-Type", response.ContentTypeJSON)
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(encoded); err != nil {
				e.api.logger.Debug("response write failed",
					zap.String("collection", e.kind.Collection()),
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetRequestID(r.Context())),
					zap.Error(err),
				)
			}
			return
		}
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		response.RenderError(w, apiErr.Status, apiErr.Message)
		return
	}

	e.api.logger.Error("request failed",
		zap.String("collection", e.kind.Collection()),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err),
	)
	response.RenderInternalError(w)
}

func (e *Endpoint) listing(r *http.Request) (any, error) {
	ctx := r.Context()
	q := r.URL.Query()

	typ, err := e.resolveType(q)
	if err != nil {
		return nil, err
	}
	if err := e.validateParams(q, typ); err != nil {
		return nil, err
	}
	fields := requestedFields(q)
	if err := serialize.CheckFields(typ, fields); err != nil {
		return nil, BadRequest("%s", err.Error())
	}

	site, err := e.api.resolveSite(ctx, r)
	if err != nil {
		return nil, err
	}

	set := e.applyFilters(e.baseSet(typ, site), q)
	if e.kind == content.KindPage {
		if set, err = e.applyChildOf(ctx, set, q); err != nil {
			return nil, err
		}
	}
	if set, err = applyOrdering(set, q); err != nil {
		return nil, err
	}
	if set, err = e.applySearch(ctx, set, q); err != nil {
		return nil, err
	}

	offset, limit, err := parsePagination(q, e.api.config)
	if err != nil {
		return nil, err
	}

	total, err := set.Count(ctx)
	if err != nil {
		return nil, err
	}
	objs, err := set.Slice(offset, limit).All(ctx)
	if err != nil {
		return nil, err
	}

	opts := serialize.Options{
		Mode:    serialize.Summary,
		Fields:  fields,
		BaseURL: e.api.baseURL(site, r),
	}
	items := make([]*serialize.Document, 0, len(objs))
	for _, obj := range objs {
		doc, err := e.api.serializer.Serialize(obj, opts)
		if err != nil {
			return nil, fmt.Errorf("serialize %s %d: %w", e.kind, obj.ObjectID(), err)
		}
		items = append(items, doc)
	}

	meta := serialize.NewDocument()
	meta.Set("total_count", total)

	body := serialize.NewDocument()
	body.Set("meta", meta)
	body.Set(e.kind.Collection(), items)
	return body, nil
}

func (e *Endpoint) detail(r *http.Request) (any, error) {
	ctx := r.Context()

	id, err := router.ObjectID(r)
	if err != nil {
		return nil, e.notFound()
	}

	site, err := e.api.resolveSite(ctx, r)
	if err != nil {
		return nil, err
	}

	objs, err := e.baseSet(e.api.registry.ForKind(e.kind), site).
		Where(query.Equal("id", strconv.Itoa(id))).
		Slice(0, 1).
		All(ctx)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, e.notFound()
	}

	doc, err := e.api.serializer.Serialize(objs[0], serialize.Options{
		Mode:      serialize.Detail,
		AllFields: true,
		BaseURL:   e.api.baseURL(site, r),
	})
	if err != nil {
		return nil, fmt.Errorf("serialize %s %d: %w", e.kind, id, err)
	}
	return doc, nil
}

// resolveType returns the registry a listing works against. Pages may name
// a specific type; every other kind has exactly one.
func (e *Endpoint) resolveType(q url.Values) (*content.TypeInfo, error) {
	if e.kind != content.KindPage || !q.Has(ParamType) {
		return e.api.registry.ForKind(e.kind), nil
	}
	typ, ok := e.api.registry.Type(q.Get(ParamType))
	if !ok || typ.Kind != content.KindPage {
		return nil, NotFound("Type doesn't exist")
	}
	return typ, nil
}

// baseSet is everything a request may see before any parameter applies.
// Pages are limited to live, public pages of the serving site.
func (e *Endpoint) baseSet(typ *content.TypeInfo, site *content.Site) query.CandidateSet {
	set := query.NewCandidateSet(e.api.store, typ)
	if e.kind != content.KindPage {
		return set
	}

	set = set.Where(query.Live(), query.Public())
	if site != nil {
		set = set.Where(query.DescendantOf(site.RootPageID, true))
	}
	if !typ.IsBase() {
		set = set.Where(query.OfType(typ.Name))
	}
	return set
}

var objectNames = map[content.Kind]string{
	content.KindPage:     "Page",
	content.KindImage:    "Image",
	content.KindDocument: "Document",
}

func (e *Endpoint) notFound() *Error {
	return NotFound(fmt.Sprintf("No %s matches the given query.", objectNames[e.kind]))
}
