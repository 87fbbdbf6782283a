package serialize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/contentapi/internal/content"
)

// Mode selects between listing and detail rendering
type Mode int

const (
	// Summary is used for listing items: no child collections
	Summary Mode = iota
	// Detail is used for single-object responses
	Detail
)

// Options controls a single Serialize call
type Options struct {
	Mode Mode
	// Fields are the requested field names; ignored when AllFields is set
	Fields []string
	// AllFields serializes every registry field of the object's type
	AllFields bool
	// BaseURL prefixes absolute URLs such as a document's download_url
	BaseURL string
}

// UnknownFieldsError lists requested field names missing from a registry
type UnknownFieldsError struct {
	Fields []string
}

func (e *UnknownFieldsError) Error() string {
	return "unknown fields: " + strings.Join(e.Fields, ", ")
}

// CheckFields returns an *UnknownFieldsError naming, sorted, every field
// not exposed by typ
func CheckFields(typ *content.TypeInfo, fields []string) error {
	var unknown []string
	for _, f := range fields {
		if !typ.Has(f) {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &UnknownFieldsError{Fields: unknown}
}

// Serializer renders objects using their field registries
type Serializer struct {
	registry *content.Registry
}

// New creates a serializer over a registry
func New(registry *content.Registry) *Serializer {
	return &Serializer{registry: registry}
}

// Serialize renders obj. The document always starts with id, followed by
// meta when the kind has any, then the fields in request order. Requested
// names unknown to the object's type are skipped.
func (s *Serializer) Serialize(obj content.Object, opts Options) (*Document, error) {
	typ := s.registry.TypeOf(obj)

	fields := opts.Fields
	if opts.AllFields {
		fields = typ.ExposedFields()
	}

	doc := NewDocument()
	doc.Set("id", obj.ObjectID())
	if meta := s.meta(obj, typ, opts); meta != nil {
		doc.Set("meta", meta)
	}

	for _, name := range fields {
		if doc.Has(name) {
			continue
		}
		f, ok := typ.Field(name)
		if !ok {
			continue
		}

		if f.Kind == content.FieldChildren {
			if opts.Mode != Detail || !f.Element.HasRegistry() {
				continue
			}
			records, err := childRecords(obj, f)
			if err != nil {
				return nil, err
			}
			doc.Set(name, records)
			continue
		}

		doc.Set(name, content.JSONValue(f.Get(obj)))
	}

	return doc, nil
}

func (s *Serializer) meta(obj content.Object, typ *content.TypeInfo, opts Options) *Document {
	switch o := obj.(type) {
	case *content.Page:
		meta := NewDocument()
		if o.Type != "" {
			meta.Set("type", o.Type)
		} else {
			meta.Set("type", typ.Name)
		}
		if opts.Mode == Detail {
			if o.ParentID > 0 {
				meta.Set("parent_id", o.ParentID)
			} else {
				meta.Set("parent_id", nil)
			}
		}
		return meta
	case *content.Document:
		if opts.Mode != Detail {
			return nil
		}
		meta := NewDocument()
		meta.Set("download_url", strings.TrimSuffix(opts.BaseURL, "/")+o.URL())
		return meta
	}
	return nil
}

// childRecords serializes a child collection using the element registry
func childRecords(obj content.Object, f content.FieldDescriptor) ([]*Document, error) {
	raw := f.Get(obj)
	if raw == nil {
		return []*Document{}, nil
	}
	records, ok := raw.([]content.Record)
	if !ok {
		return nil, fmt.Errorf("field %s: expected child records, got %T", f.Name, raw)
	}

	out := make([]*Document, 0, len(records))
	for _, rec := range records {
		item := NewDocument()
		for _, name := range f.Element.Fields {
			item.Set(name, content.JSONValue(rec.Fields[name]))
		}
		out = append(out, item)
	}
	return out, nil
}
