package query

import (
	"sort"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
)

// SortObjects orders objs by terms. Ties left by every term are broken on id
// in the direction of the first term, so a reversed order is an exact reverse.
func SortObjects(objs []content.Object, terms []OrderTerm) {
	if len(terms) == 0 {
		return
	}
	desc := terms[0].Desc
	sort.SliceStable(objs, func(i, j int) bool {
		for _, term := range terms {
			if c := CompareValues(term.Value(objs[i]), term.Value(objs[j])); c != 0 {
				if term.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		if desc {
			return objs[i].ObjectID() > objs[j].ObjectID()
		}
		return objs[i].ObjectID() < objs[j].ObjectID()
	})
}

// CompareValues orders nil first, then numbers numerically, then text
func CompareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	ta, _ := content.Text(a)
	tb, _ := content.Text(b)
	return strings.Compare(ta, tb)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
