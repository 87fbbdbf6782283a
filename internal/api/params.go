package api

import (
	"net/url"
	"sort"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
)

// Control parameters accepted by every listing
const (
	ParamLimit  = "limit"
	ParamOffset = "offset"
	ParamFields = "fields"
	ParamOrder  = "order"
	ParamSearch = "search"

	// Page listings only
	ParamType    = "type"
	ParamChildOf = "child_of"
)

var controlParams = []string{ParamLimit, ParamOffset, ParamFields, ParamOrder, ParamSearch}

// defaultFields are serialized in listings without a fields parameter
var defaultFields = []string{"title"}

// isControl reports whether name is an operation rather than a field filter
func (e *Endpoint) isControl(name string) bool {
	for _, p := range controlParams {
		if p == name {
			return true
		}
	}
	for _, p := range e.extras {
		if p == name {
			return true
		}
	}
	return false
}

// validateParams rejects any key that is neither an operation nor a field of typ
func (e *Endpoint) validateParams(q url.Values, typ *content.TypeInfo) error {
	var unknown []string
	for key := range q {
		if e.isControl(key) || typ.Has(key) {
			continue
		}
		unknown = append(unknown, key)
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return BadRequest("query parameter is not an operation or a recognised field: %s", strings.Join(unknown, ", "))
}

// requestedFields returns the fields parameter split on commas, trimmed and
// de-duplicated, or the listing default when absent
func requestedFields(q url.Values) []string {
	if !q.Has(ParamFields) {
		return defaultFields
	}
	return splitList(q.Get(ParamFields))
}

func splitList(raw string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
