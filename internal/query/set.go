package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
)

// OrderTerm sorts by one field
type OrderTerm struct {
	Field string
	Desc  bool
	// Get reads a field derived in Go; nil for stored fields
	Get content.Accessor
}

// Value reads the term's field from obj
func (o OrderTerm) Value(obj content.Object) any {
	if o.Get != nil {
		return o.Get(obj)
	}
	v, _ := content.Attribute(obj, o.Field)
	return v
}

// String renders the term the way the order parameter spells it
func (o OrderTerm) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// Spec is the plain-data form of a candidate set handed to a Source.
//
// Ordering precedence: Random, then Order, then Rank, then the kind's
// natural order (tree path for pages, id otherwise). Whenever Order is used
// the source breaks ties on id in the direction of the first term.
type Spec struct {
	Kind       content.Kind
	Conditions []Condition
	Order      []OrderTerm
	Random     bool
	Rank       *Match
	Offset     int
	// Limit of -1 means no limit
	Limit int
}

// Computed reports whether any condition or order term is derived in Go
func (s Spec) Computed() bool {
	for _, c := range s.Conditions {
		if c.Computed() {
			return true
		}
	}
	return s.computedOrder()
}

func (s Spec) computedOrder() bool {
	for _, o := range s.Order {
		if o.Get != nil {
			return true
		}
	}
	return false
}

// Split separates what a storage backend can evaluate from what must run in
// Go. The stored part is unsliced and drops the ordering when any order term
// is computed; the caller filters by the returned conditions, sorts with
// SortObjects if needed, then applies the window.
func (s Spec) Split() (stored Spec, computed []Condition) {
	stored = s
	stored.Conditions = nil
	for _, c := range s.Conditions {
		if c.Computed() {
			computed = append(computed, c)
		} else {
			stored.Conditions = append(stored.Conditions, c)
		}
	}
	if s.computedOrder() {
		stored.Order = nil
	} else {
		stored.Order = append([]OrderTerm(nil), s.Order...)
	}
	stored.Offset, stored.Limit = 0, -1
	return stored, computed
}

// Sliced reports whether the spec selects a window of the result
func (s Spec) Sliced() bool {
	return s.Offset > 0 || s.Limit >= 0
}

// Source evaluates specs against stored content
type Source interface {
	// Count returns the number of objects matching the conditions, ignoring
	// ordering and slicing
	Count(ctx context.Context, spec Spec) (int, error)
	// Fetch returns the ordered, sliced objects
	Fetch(ctx context.Context, spec Spec) ([]content.Object, error)
}

// CandidateSet is an immutable, lazily evaluated collection. Every method
// returns a new value; nothing reaches the source until Count or All.
type CandidateSet struct {
	source      Source
	typ         *content.TypeInfo
	spec        Spec
	tagFiltered bool
}

// NewCandidateSet returns the unfiltered set of objects of typ's kind
func NewCandidateSet(source Source, typ *content.TypeInfo) CandidateSet {
	return CandidateSet{
		source: source,
		typ:    typ,
		spec:   Spec{Kind: typ.Kind, Limit: -1},
	}
}

// Type returns the field registry the set ranges over
func (s CandidateSet) Type() *content.TypeInfo {
	return s.typ
}

// Kind returns the kind of object in the set
func (s CandidateSet) Kind() content.Kind {
	return s.spec.Kind
}

// Where narrows the set by the conjunction of conds
func (s CandidateSet) Where(conds ...Condition) CandidateSet {
	next := s.clone()
	next.spec.Conditions = append(next.spec.Conditions, conds...)
	for _, c := range conds {
		if c.Operator == OpHasTags {
			next.tagFiltered = true
		}
	}
	return next
}

// OrderBy replaces the ordering
func (s CandidateSet) OrderBy(terms ...OrderTerm) CandidateSet {
	next := s.clone()
	next.spec.Order = append([]OrderTerm(nil), terms...)
	next.spec.Random = false
	return next
}

// Shuffle orders the set by a fresh random permutation on every evaluation
func (s CandidateSet) Shuffle() CandidateSet {
	next := s.clone()
	next.spec.Order = nil
	next.spec.Random = true
	return next
}

// RankBy orders the set by descending number of term hits, used by search
// backends when no explicit order is given
func (s CandidateSet) RankBy(m Match) CandidateSet {
	next := s.clone()
	next.spec.Rank = &Match{
		Terms:  append([]string(nil), m.Terms...),
		Fields: append([]string(nil), m.Fields...),
	}
	return next
}

// Slice selects a window of the set
func (s CandidateSet) Slice(offset, limit int) CandidateSet {
	next := s.clone()
	next.spec.Offset = offset
	next.spec.Limit = limit
	return next
}

// TagFiltered reports whether a tag condition has been applied
func (s CandidateSet) TagFiltered() bool {
	return s.tagFiltered
}

// Spec returns a copy of the set's spec
func (s CandidateSet) Spec() Spec {
	return s.clone().spec
}

// Count returns the size of the set, ignoring any slice
func (s CandidateSet) Count(ctx context.Context) (int, error) {
	spec := s.Spec()
	spec.Offset, spec.Limit = 0, -1
	n, err := s.source.Count(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", spec.Kind.Collection(), err)
	}
	return n, nil
}

// All materializes the set
func (s CandidateSet) All(ctx context.Context) ([]content.Object, error) {
	spec := s.Spec()
	objs, err := s.source.Fetch(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", spec.Kind.Collection(), err)
	}
	return objs, nil
}

// String describes the set for debug logging
func (s CandidateSet) String() string {
	var b strings.Builder
	b.WriteString(s.spec.Kind.Collection())
	for i, c := range s.spec.Conditions {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(c.String())
	}
	switch {
	case s.spec.Random:
		b.WriteString(" ORDER BY RANDOM")
	case len(s.spec.Order) > 0:
		b.WriteString(" ORDER BY ")
		for i, o := range s.spec.Order {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.String())
		}
	case s.spec.Rank != nil:
		b.WriteString(" ORDER BY RANK")
	}
	if s.spec.Limit >= 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.spec.Limit)
	}
	if s.spec.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", s.spec.Offset)
	}
	return b.String()
}

func (s CandidateSet) clone() CandidateSet {
	next := s
	next.spec.Conditions = append([]Condition(nil), s.spec.Conditions...)
	next.spec.Order = append([]OrderTerm(nil), s.spec.Order...)
	if s.spec.Rank != nil {
		rank := *s.spec.Rank
		next.spec.Rank = &rank
	}
	return next
}
