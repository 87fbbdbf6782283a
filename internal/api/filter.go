package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

// applyFilters narrows set by every query key naming a filterable field.
// Tag fields take a comma separated list that must all be present; other
// fields, computed ones included, match on their canonical text.
func (e *Endpoint) applyFilters(set query.CandidateSet, q url.Values) query.CandidateSet {
	typ := set.Type()

	keys := make([]string, 0, len(q))
	for key := range q {
		if !e.isControl(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, ok := typ.Field(key)
		if !ok || !f.Filterable() {
			continue
		}
		value := q.Get(key)
		switch f.Kind {
		case content.FieldTags:
			set = set.Where(query.HasTags(splitList(value)))
		case content.FieldComputed:
			set = set.Where(query.EqualComputed(key, value, f.Get))
		default:
			set = set.Where(query.Equal(key, value))
		}
	}
	return set
}

// applyChildOf restricts a page set to the immediate children of the page
// named by child_of. Any page may be named, live or not.
func (e *Endpoint) applyChildOf(ctx context.Context, set query.CandidateSet, q url.Values) (query.CandidateSet, error) {
	if !q.Has(ParamChildOf) {
		return set, nil
	}

	id, err := strconv.Atoi(q.Get(ParamChildOf))
	if err != nil {
		return set, NotFound("Parent page doesn't exist")
	}
	if _, err := e.api.store.Page(ctx, id); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return set, NotFound("Parent page doesn't exist")
		}
		return set, fmt.Errorf("look up parent page %d: %w", id, err)
	}
	return set.Where(query.ChildOf(id)), nil
}
