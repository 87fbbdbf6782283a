package memory

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

// matches must be called with the read lock held
func (s *Store) matches(obj content.Object, c query.Condition) bool {
	switch c.Operator {
	case query.OpEqual:
		if c.Computed() {
			return c.EvalComputed(obj)
		}
		v, ok := content.Attribute(obj, c.Field)
		if !ok {
			return false
		}
		text, ok := content.Text(v)
		return ok && text == c.Value.(string)

	case query.OpHasTags:
		return hasAll(tagsOf(obj), c.Value.([]string))

	case query.OpMatches:
		m := c.Value.(query.Match)
		if len(m.Terms) == 0 {
			return false
		}
		for _, term := range m.Terms {
			one := query.Match{Terms: []string{term}}
			found := false
			for _, f := range m.Fields {
				if one.Hits(fieldText(obj, f)) > 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	p, ok := obj.(*content.Page)
	if !ok {
		return false
	}

	switch c.Operator {
	case query.OpChildOf:
		return p.ParentID == c.Value.(int)
	case query.OpDescendantOf:
		d := c.Value.(query.Descent)
		if p.ID == d.ID {
			return d.Inclusive
		}
		anc, ok := s.pages[d.ID]
		return ok && anc.IsAncestorOf(p)
	case query.OpLive:
		return p.Live
	case query.OpPublic:
		for _, r := range s.pages {
			if r.Restricted && (r.ID == p.ID || r.IsAncestorOf(p)) {
				return false
			}
		}
		return true
	case query.OpType:
		return strings.EqualFold(p.Type, c.Value.(string))
	}
	return false
}

func order(objs []content.Object, spec query.Spec) {
	switch {
	case spec.Random:
		rand.Shuffle(len(objs), func(i, j int) { objs[i], objs[j] = objs[j], objs[i] })

	case len(spec.Order) > 0:
		query.SortObjects(objs, spec.Order)

	case spec.Rank != nil:
		ranks := make(map[int]int, len(objs))
		for _, obj := range objs {
			n := 0
			for _, f := range spec.Rank.Fields {
				n += spec.Rank.Hits(fieldText(obj, f))
			}
			ranks[obj.ObjectID()] = n
		}
		naturalOrder(objs)
		sort.SliceStable(objs, func(i, j int) bool {
			return ranks[objs[i].ObjectID()] > ranks[objs[j].ObjectID()]
		})

	default:
		naturalOrder(objs)
	}
}

// naturalOrder sorts pages by tree path and everything else by id
func naturalOrder(objs []content.Object) {
	sort.Slice(objs, func(i, j int) bool {
		pi, iok := objs[i].(*content.Page)
		pj, jok := objs[j].(*content.Page)
		if iok && jok && pi.Path != pj.Path {
			return pi.Path < pj.Path
		}
		return objs[i].ObjectID() < objs[j].ObjectID()
	})
}

func fieldText(obj content.Object, field string) string {
	v, ok := content.Attribute(obj, field)
	if !ok {
		return ""
	}
	text, _ := content.Text(v)
	return text
}

func tagsOf(obj content.Object) []string {
	v, _ := content.Attribute(obj, "tags")
	tags, _ := v.([]string)
	return tags
}

func hasAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
