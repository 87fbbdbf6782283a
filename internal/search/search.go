// Package search provides the search backends the API dispatches to.
package search

import (
	"context"

	"github.com/conduit-lang/contentapi/internal/query"
)

// DatabaseBackend searches by term containment in the type's search fields,
// evaluated by the same store that holds the content. Every term must occur
// in at least one field.
type DatabaseBackend struct {
	// Rank orders results by the number of search fields each term occurs in
	Rank bool
}

// NewDatabaseBackend creates a database backend
func NewDatabaseBackend(rank bool) *DatabaseBackend {
	return &DatabaseBackend{Rank: rank}
}

// Search narrows set to the objects matching q. A query without terms
// matches nothing.
func (b *DatabaseBackend) Search(ctx context.Context, q string, set query.CandidateSet) (query.CandidateSet, error) {
	if err := ctx.Err(); err != nil {
		return set, err
	}

	match := query.Match{
		Terms:  query.ParseTerms(q),
		Fields: set.Type().SearchFields(),
	}
	set = set.Where(query.Matches(match))
	if b.Rank {
		set = set.RankBy(match)
	}
	return set, nil
}
