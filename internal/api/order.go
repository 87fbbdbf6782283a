package api

import (
	"net/url"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

// orderRandom is the order value requesting a shuffled listing
const orderRandom = "random"

// applyOrdering sorts set by the order parameter. Combining order with
// search is rejected before the value is looked at.
func applyOrdering(set query.CandidateSet, q url.Values) (query.CandidateSet, error) {
	if !q.Has(ParamOrder) {
		return set, nil
	}
	if q.Has(ParamSearch) {
		return set, BadRequest("ordering with a search query is not supported")
	}

	value := q.Get(ParamOrder)
	if value == orderRandom {
		if q.Has(ParamOffset) {
			return set, BadRequest("random ordering with offset is not supported")
		}
		return set.Shuffle(), nil
	}

	term := query.OrderTerm{Field: value}
	if strings.HasPrefix(value, "-") {
		term = query.OrderTerm{Field: value[1:], Desc: true}
	}

	f, ok := set.Type().Field(term.Field)
	if !ok || !f.Orderable() {
		return set, BadRequest("cannot order by '%s' (unknown field)", term.Field)
	}
	if f.Kind == content.FieldComputed {
		term.Get = f.Get
	}
	return set.OrderBy(term), nil
}
