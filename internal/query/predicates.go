// Package query provides the candidate set: an immutable description of a
// filtered, ordered and sliced collection of content objects that storage
// collaborators evaluate.
package query

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
)

// Operator identifies a condition kind
type Operator int

const (
	// OpEqual matches objects whose field text equals Value (string)
	OpEqual Operator = iota
	// OpHasTags matches objects carrying every tag in Value ([]string)
	OpHasTags
	// OpChildOf matches pages whose parent is Value (int)
	OpChildOf
	// OpDescendantOf matches pages below Value (Descent)
	OpDescendantOf
	// OpLive matches published pages
	OpLive
	// OpPublic matches pages with no view restriction on themselves or an ancestor
	OpPublic
	// OpType matches pages of the type named by Value (string)
	OpType
	// OpMatches matches objects containing every term of Value (Match)
	OpMatches
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpHasTags:
		return "HAS TAGS"
	case OpChildOf:
		return "CHILD OF"
	case OpDescendantOf:
		return "DESCENDANT OF"
	case OpLive:
		return "LIVE"
	case OpPublic:
		return "PUBLIC"
	case OpType:
		return "TYPE"
	case OpMatches:
		return "MATCHES"
	default:
		return "UNKNOWN"
	}
}

// Descent is the value of an OpDescendantOf condition
type Descent struct {
	ID        int
	Inclusive bool
}

// Match is a parsed search query: lower-cased terms, all of which must occur
// in at least one of Fields.
type Match struct {
	Terms  []string
	Fields []string
}

// Condition is one conjunct of a candidate set
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
	// Get is set for fields derived in Go. Sources evaluate it instead of
	// reading Field from storage.
	Get content.Accessor
}

// Computed reports whether the condition must be evaluated in Go
func (c Condition) Computed() bool {
	return c.Get != nil
}

// EvalComputed reports whether obj satisfies a computed equality. It is
// false for any other condition.
func (c Condition) EvalComputed(obj content.Object) bool {
	if c.Get == nil || c.Operator != OpEqual {
		return false
	}
	text, ok := content.Text(c.Get(obj))
	return ok && text == c.Value.(string)
}

// String renders the condition for logs and test failures
func (c Condition) String() string {
	switch c.Operator {
	case OpLive, OpPublic:
		return c.Operator.String()
	case OpEqual:
		return fmt.Sprintf("%s = %v", c.Field, c.Value)
	default:
		return fmt.Sprintf("%s %v", c.Operator, c.Value)
	}
}

// Equal matches objects whose field has the given canonical text
func Equal(field, value string) Condition {
	return Condition{Field: field, Operator: OpEqual, Value: value}
}

// EqualComputed matches objects whose derived field has the given text
func EqualComputed(field, value string, get content.Accessor) Condition {
	return Condition{Field: field, Operator: OpEqual, Value: value, Get: get}
}

// HasTags matches objects carrying all of tags
func HasTags(tags []string) Condition {
	return Condition{Field: "tags", Operator: OpHasTags, Value: append([]string(nil), tags...)}
}

// ChildOf matches immediate children of the page
func ChildOf(id int) Condition {
	return Condition{Operator: OpChildOf, Value: id}
}

// DescendantOf matches pages below the page, and the page itself when inclusive
func DescendantOf(id int, inclusive bool) Condition {
	return Condition{Operator: OpDescendantOf, Value: Descent{ID: id, Inclusive: inclusive}}
}

// Live matches published pages
func Live() Condition {
	return Condition{Operator: OpLive}
}

// Public matches pages visible without authentication
func Public() Condition {
	return Condition{Operator: OpPublic}
}

// OfType matches pages of the given dotted type
func OfType(name string) Condition {
	return Condition{Field: "type", Operator: OpType, Value: name}
}

// Matches matches objects containing every term in one of the fields
func Matches(m Match) Condition {
	return Condition{Operator: OpMatches, Value: m}
}

// ParseTerms splits a search query into lower-cased terms
func ParseTerms(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// Hits counts how many terms occur in text, case-insensitively
func (m Match) Hits(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, term := range m.Terms {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}
