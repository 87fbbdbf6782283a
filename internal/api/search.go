package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/conduit-lang/contentapi/internal/query"
)

// SearchBackend narrows a candidate set to the objects matching a free-text
// query. Backends see the set's type and may order by relevance.
type SearchBackend interface {
	Search(ctx context.Context, q string, set query.CandidateSet) (query.CandidateSet, error)
}

// applySearch hands the set to the search backend when search is given
func (e *Endpoint) applySearch(ctx context.Context, set query.CandidateSet, q url.Values) (query.CandidateSet, error) {
	if !q.Has(ParamSearch) {
		return set, nil
	}
	if !e.api.config.SearchEnabled || e.api.search == nil {
		return set, BadRequest("search is disabled")
	}
	if set.TagFiltered() {
		return set, BadRequest("filtering by tag with a search query is not supported")
	}

	result, err := e.api.search.Search(ctx, q.Get(ParamSearch), set)
	if err != nil {
		return set, fmt.Errorf("search %s: %w", set.Kind().Collection(), err)
	}
	return result, nil
}
