package sqlstore

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

// builder renders a spec as one statement, collecting bind arguments in
// the order their placeholders appear
type builder struct {
	dialect Dialect
	kind    content.Kind
	args    []interface{}
}

func newBuilder(dialect Dialect, kind content.Kind) *builder {
	return &builder{dialect: dialect, kind: kind}
}

func (b *builder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.placeholder(len(b.args))
}

func (b *builder) count(spec query.Spec) string {
	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT COUNT(*) FROM %s o", tableFor(spec.Kind))
	b.where(&sql, spec.Conditions)
	return sql.String()
}

func (b *builder) fetch(spec query.Spec) string {
	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT %s FROM %s o", columnsFor(spec.Kind), tableFor(spec.Kind))
	b.where(&sql, spec.Conditions)

	sql.WriteString(" ORDER BY ")
	sql.WriteString(b.orderBy(spec))

	switch {
	case spec.Limit >= 0:
		fmt.Fprintf(&sql, " LIMIT %s", b.arg(spec.Limit))
		if spec.Offset > 0 {
			fmt.Fprintf(&sql, " OFFSET %s", b.arg(spec.Offset))
		}
	case spec.Offset > 0 && b.dialect == SQLite:
		// SQLite only accepts OFFSET after a LIMIT
		fmt.Fprintf(&sql, " LIMIT -1 OFFSET %s", b.arg(spec.Offset))
	case spec.Offset > 0:
		fmt.Fprintf(&sql, " OFFSET %s", b.arg(spec.Offset))
	}
	return sql.String()
}

func (b *builder) where(sql *strings.Builder, conds []query.Condition) {
	for i, c := range conds {
		if i == 0 {
			sql.WriteString(" WHERE ")
		} else {
			sql.WriteString(" AND ")
		}
		sql.WriteString(b.condition(c))
	}
}

const never = "1 = 0"

func (b *builder) condition(c query.Condition) string {
	switch c.Operator {
	case query.OpEqual:
		if col, ok := column(b.kind, c.Field); ok {
			return fmt.Sprintf("CAST(o.%s AS TEXT) = %s", col, b.arg(c.Value))
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM field_values fv WHERE fv.kind = %s AND fv.object_id = o.id AND fv.name = %s AND fv.text_value = %s)",
			b.arg(b.kind.String()), b.arg(c.Field), b.arg(c.Value))

	case query.OpHasTags:
		tags := c.Value.([]string)
		if len(tags) == 0 {
			return "1 = 1"
		}
		parts := make([]string, len(tags))
		for i, tag := range tags {
			parts[i] = b.hasTag("t.name = ", tag)
		}
		return strings.Join(parts, " AND ")

	case query.OpMatches:
		return b.matches(c.Value.(query.Match))
	}

	if b.kind != content.KindPage {
		return never
	}

	switch c.Operator {
	case query.OpChildOf:
		return "o.parent_id = " + b.arg(c.Value)
	case query.OpDescendantOf:
		d := c.Value.(query.Descent)
		cond := fmt.Sprintf("o.path LIKE (SELECT a.path FROM pages a WHERE a.id = %s) || '%%'", b.arg(d.ID))
		if !d.Inclusive {
			cond += " AND o.id <> " + b.arg(d.ID)
		}
		return "(" + cond + ")"
	case query.OpLive:
		return "o.live = 1"
	case query.OpPublic:
		return "NOT EXISTS (SELECT 1 FROM pages r WHERE r.restricted = 1 AND o.path LIKE r.path || '%')"
	case query.OpType:
		return "LOWER(o.type) = LOWER(" + b.arg(c.Value) + ")"
	}
	return never
}

// matches requires every term to occur in at least one search field
func (b *builder) matches(m query.Match) string {
	if len(m.Terms) == 0 || len(m.Fields) == 0 {
		return never
	}

	terms := make([]string, len(m.Terms))
	for i, term := range m.Terms {
		fields := make([]string, len(m.Fields))
		for j, f := range m.Fields {
			fields[j] = b.contains(f, term)
		}
		terms[i] = "(" + strings.Join(fields, " OR ") + ")"
	}
	return strings.Join(terms, " AND ")
}

func (b *builder) contains(field, term string) string {
	pattern := "%" + escapeLike(term) + "%"
	if col, ok := column(b.kind, field); ok {
		return fmt.Sprintf("LOWER(CAST(o.%s AS TEXT)) LIKE %s ESCAPE '\\'", col, b.arg(pattern))
	}
	if field == "tags" {
		return b.hasTag("LOWER(t.name) LIKE ", pattern)
	}
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM field_values fv WHERE fv.kind = %s AND fv.object_id = o.id AND fv.name = %s AND LOWER(fv.text_value) LIKE %s ESCAPE '\\')",
		b.arg(b.kind.String()), b.arg(field), b.arg(pattern))
}

// hasTag renders an EXISTS over the tag table; the kind placeholder is
// bound before value so positional placeholders stay in order
func (b *builder) hasTag(predicate string, value interface{}) string {
	kind := b.arg(b.kind.String())
	cond := predicate + b.arg(value)
	if strings.HasPrefix(predicate, "LOWER") {
		cond += ` ESCAPE '\'`
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM tags t WHERE t.kind = %s AND t.object_id = o.id AND %s)", kind, cond)
}

func (b *builder) orderBy(spec query.Spec) string {
	switch {
	case spec.Random:
		return "RANDOM()"
	case len(spec.Order) > 0:
		var keys []string
		for _, term := range spec.Order {
			dir := direction(term.Desc)
			for _, expr := range b.sortKeys(term.Field) {
				keys = append(keys, expr+" "+dir)
			}
		}
		keys = append(keys, "o.id "+direction(spec.Order[0].Desc))
		return strings.Join(keys, ", ")
	case spec.Kind == content.KindPage:
		return "o.path, o.id"
	default:
		return "o.id"
	}
}

// sortKeys orders missing values first, then numbers, then text
func (b *builder) sortKeys(field string) []string {
	if col, ok := column(b.kind, field); ok {
		return []string{"o." + col}
	}
	lookup := func(col string) string {
		return fmt.Sprintf(
			"(SELECT fv.%s FROM field_values fv WHERE fv.kind = %s AND fv.object_id = o.id AND fv.name = %s)",
			col, b.arg(b.kind.String()), b.arg(field))
	}
	return []string{
		"CASE WHEN " + lookup("text_value") + " IS NULL THEN 0 ELSE 1 END",
		"COALESCE(" + lookup("num_value") + ", 0)",
		lookup("text_value"),
	}
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func tableFor(kind content.Kind) string {
	return kind.Collection()
}

// column maps a structural field to its column
func column(kind content.Kind, field string) (string, bool) {
	switch field {
	case "id", "title":
		return field, true
	}
	switch kind {
	case content.KindPage:
		if field == "slug" {
			return field, true
		}
	case content.KindImage:
		switch field {
		case "width", "height", "file":
			return field, true
		}
	case content.KindDocument:
		if field == "file" {
			return field, true
		}
	}
	return "", false
}
