package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

const (
	pageColumns     = "o.id, o.type, o.title, o.slug, o.path, o.depth, o.parent_id, o.live, o.restricted, o.fields, o.tags, o.children"
	imageColumns    = "o.id, o.title, o.width, o.height, o.file, o.fields, o.tags"
	documentColumns = "o.id, o.title, o.file, o.fields, o.tags"
)

func columnsFor(kind content.Kind) string {
	switch kind {
	case content.KindImage:
		return imageColumns
	case content.KindDocument:
		return documentColumns
	default:
		return pageColumns
	}
}

// scanObjects reads every row of a SELECT built from columnsFor(kind)
func scanObjects(rows *sql.Rows, kind content.Kind) ([]content.Object, error) {
	objs := make([]content.Object, 0)
	for rows.Next() {
		var (
			obj content.Object
			err error
		)
		switch kind {
		case content.KindImage:
			obj, err = scanImage(rows)
		case content.KindDocument:
			obj, err = scanDocument(rows)
		default:
			obj, err = scanPage(rows)
		}
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return objs, nil
}

func scanPage(rows *sql.Rows) (*content.Page, error) {
	var (
		p                      content.Page
		live, restricted       int
		fields, tags, children string
	)
	if err := rows.Scan(&p.ID, &p.Type, &p.Title, &p.Slug, &p.Path, &p.Depth, &p.ParentID,
		&live, &restricted, &fields, &tags, &children); err != nil {
		return nil, err
	}
	p.Live = live != 0
	p.Restricted = restricted != 0

	if err := decode(fields, tags, &p.Fields, &p.Tags); err != nil {
		return nil, fmt.Errorf("page %d: %w", p.ID, err)
	}

	var collections map[string][]map[string]any
	if err := json.Unmarshal([]byte(children), &collections); err != nil {
		return nil, fmt.Errorf("page %d: invalid child collections: %w", p.ID, err)
	}
	if len(collections) > 0 {
		p.Children = make(map[string][]content.Record, len(collections))
		for name, items := range collections {
			records := make([]content.Record, len(items))
			for i, item := range items {
				records[i] = content.Record{Fields: item}
			}
			p.Children[name] = records
		}
	}
	return &p, nil
}

func scanImage(rows *sql.Rows) (*content.Image, error) {
	var (
		img          content.Image
		fields, tags string
	)
	if err := rows.Scan(&img.ID, &img.Title, &img.Width, &img.Height, &img.File, &fields, &tags); err != nil {
		return nil, err
	}
	if err := decode(fields, tags, &img.Fields, &img.Tags); err != nil {
		return nil, fmt.Errorf("image %d: %w", img.ID, err)
	}
	return &img, nil
}

func scanDocument(rows *sql.Rows) (*content.Document, error) {
	var (
		doc          content.Document
		fields, tags string
	)
	if err := rows.Scan(&doc.ID, &doc.Title, &doc.File, &fields, &tags); err != nil {
		return nil, err
	}
	if err := decode(fields, tags, &doc.Fields, &doc.Tags); err != nil {
		return nil, fmt.Errorf("document %d: %w", doc.ID, err)
	}
	return &doc, nil
}

func decode(fields, tags string, fieldsOut *map[string]any, tagsOut *[]string) error {
	if err := json.Unmarshal([]byte(fields), fieldsOut); err != nil {
		return fmt.Errorf("invalid fields: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), tagsOut); err != nil {
		return fmt.Errorf("invalid tags: %w", err)
	}
	return nil
}

// rank orders objs by descending hit count, keeping the natural order
// among equals
func rank(objs []content.Object, m query.Match) {
	hits := make(map[int]int, len(objs))
	for _, obj := range objs {
		n := 0
		for _, f := range m.Fields {
			v, ok := content.Attribute(obj, f)
			if !ok {
				continue
			}
			if text, ok := content.Text(v); ok {
				n += m.Hits(text)
			}
		}
		hits[obj.ObjectID()] = n
	}
	sort.SliceStable(objs, func(i, j int) bool {
		return hits[objs[i].ObjectID()] > hits[objs[j].ObjectID()]
	})
}

func window(objs []content.Object, offset, limit int) []content.Object {
	if offset >= len(objs) {
		return []content.Object{}
	}
	objs = objs[offset:]
	if limit >= 0 && limit < len(objs) {
		objs = objs[:limit]
	}
	return objs
}
