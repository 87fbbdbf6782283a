package content

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// BasePageType is the type name of pages that declare no subtype fields.
const BasePageType = "core.Page"

// FieldKind tells how a registry field is resolved on an object
type FieldKind int

const (
	// FieldStructural is an attribute every object of the kind carries
	FieldStructural FieldKind = iota
	// FieldPlain is a subtype value read from the object's Fields
	FieldPlain
	// FieldTags is the object's tag set
	FieldTags
	// FieldComputed is derived in Go from the object
	FieldComputed
	// FieldChildren is a child collection of Records
	FieldChildren
)

func (k FieldKind) String() string {
	switch k {
	case FieldStructural:
		return "structural"
	case FieldPlain:
		return "plain"
	case FieldTags:
		return "tags"
	case FieldComputed:
		return "computed"
	case FieldChildren:
		return "children"
	default:
		return "unknown"
	}
}

// Accessor reads a field value from an object
type Accessor func(Object) any

// FieldDescriptor is one entry of a field registry.
type FieldDescriptor struct {
	Name    string
	Kind    FieldKind
	Get     Accessor
	Element *RecordType
}

// Orderable reports whether the field has a single value to sort by.
// Computed fields sort on the value their accessor returns.
func (f FieldDescriptor) Orderable() bool {
	return f.Kind == FieldStructural || f.Kind == FieldPlain || f.Kind == FieldComputed
}

// Filterable reports whether an equality or tag filter applies to the field.
// Child collections have no filter semantics.
func (f FieldDescriptor) Filterable() bool {
	return f.Kind != FieldChildren
}

// RecordType is the registry of a child-collection element.
type RecordType struct {
	Name   string
	Fields []string
}

// HasRegistry reports whether elements of this type can be serialized
func (r *RecordType) HasRegistry() bool {
	return r != nil && len(r.Fields) > 0
}

// TypeInfo is the field registry of one concrete type.
type TypeInfo struct {
	Name         string
	Kind         Kind
	fields       []FieldDescriptor
	index        map[string]int
	searchFields []string
}

// ExposedFields returns the registry field names in declaration order
func (t *TypeInfo) ExposedFields() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the descriptors
func (t *TypeInfo) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a descriptor by name
func (t *TypeInfo) Field(name string) (FieldDescriptor, bool) {
	i, ok := t.index[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return t.fields[i], true
}

// Has reports whether name is an exposed field
func (t *TypeInfo) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// SearchFields returns the fields a search query is matched against
func (t *TypeInfo) SearchFields() []string {
	return append([]string(nil), t.searchFields...)
}

// IsBase reports whether this is the generic page type used when a request
// does not name one.
func (t *TypeInfo) IsBase() bool {
	return t.Kind == KindPage && t.Name == BasePageType
}

func (t *TypeInfo) add(f FieldDescriptor) {
	if _, dup := t.index[f.Name]; dup {
		return
	}
	t.index[f.Name] = len(t.fields)
	t.fields = append(t.fields, f)
}

// TypeDef declares a type: its extra exposed fields, the child collections
// among them (relation name to element fields) and its search fields.
type TypeDef struct {
	Name     string
	Fields   []string
	Children map[string][]string
	Search   []string
}

// Registry holds the field registries of every type. It is built at startup
// and only read while serving.
type Registry struct {
	mu       sync.RWMutex
	pages    map[string]*TypeInfo
	basePage *TypeInfo
	image    *TypeInfo
	document *TypeInfo
	computed map[Kind]map[string]Accessor
}

// NewRegistry creates a registry containing only the base types
func NewRegistry() *Registry {
	r := &Registry{
		pages:    make(map[string]*TypeInfo),
		computed: make(map[Kind]map[string]Accessor),
	}
	r.RegisterComputed(KindDocument, "filename", func(obj Object) any {
		if d, ok := obj.(*Document); ok {
			return d.Filename()
		}
		return nil
	})
	r.basePage = r.build(KindPage, TypeDef{Name: BasePageType})
	r.pages[strings.ToLower(BasePageType)] = r.basePage
	r.image = r.build(KindImage, TypeDef{Name: "core.Image"})
	r.document = r.build(KindDocument, TypeDef{Name: "core.Document"})
	return r
}

// RegisterComputed adds a Go-derived field. It becomes exposed on the kind's
// types that declare it; types defined afterwards resolve it as well.
func (r *Registry) RegisterComputed(kind Kind, name string, fn Accessor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.computed[kind] == nil {
		r.computed[kind] = make(map[string]Accessor)
	}
	r.computed[kind][name] = fn
}

// DefinePageType registers a page type
func (r *Registry) DefinePageType(def TypeDef) error {
	if !strings.Contains(def.Name, ".") {
		return fmt.Errorf("page type %q must be a dotted name", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(def.Name)
	if key != strings.ToLower(BasePageType) {
		if _, exists := r.pages[key]; exists {
			return fmt.Errorf("page type %s is already registered", def.Name)
		}
	}
	info := r.build(KindPage, def)
	r.pages[key] = info
	if info.IsBase() {
		r.basePage = info
	}
	return nil
}

// DefineFields sets the extra fields of the image or document type
func (r *Registry) DefineFields(kind Kind, def TypeDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case KindImage:
		if def.Name == "" {
			def.Name = r.image.Name
		}
		r.image = r.build(kind, def)
	case KindDocument:
		if def.Name == "" {
			def.Name = r.document.Name
		}
		r.document = r.build(kind, def)
	default:
		return fmt.Errorf("use DefinePageType for %s types", kind)
	}
	return nil
}

// Type resolves a dotted page type name, case-insensitively
func (r *Registry) Type(name string) (*TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.pages[strings.ToLower(name)]
	return info, ok
}

// ForKind returns the registry used when no specific type is known
func (r *Registry) ForKind(kind Kind) *TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case KindImage:
		return r.image
	case KindDocument:
		return r.document
	default:
		return r.basePage
	}
}

// TypeOf returns the most specific registry for an object
func (r *Registry) TypeOf(obj Object) *TypeInfo {
	if p, ok := obj.(*Page); ok {
		if info, found := r.Type(p.Type); found {
			return info
		}
	}
	return r.ForKind(obj.ObjectKind())
}

// PageTypes returns the registered page type names, sorted
func (r *Registry) PageTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pages))
	for _, info := range r.pages {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// build must be called with the lock held (or before the registry is shared)
func (r *Registry) build(kind Kind, def TypeDef) *TypeInfo {
	info := &TypeInfo{
		Name:  def.Name,
		Kind:  kind,
		index: make(map[string]int),
	}

	for _, name := range baseFields(kind) {
		info.add(r.resolve(kind, name, def))
	}
	for _, name := range def.Fields {
		if name == "" {
			continue
		}
		info.add(r.resolve(kind, name, def))
	}

	info.searchFields = def.Search
	if len(info.searchFields) == 0 {
		info.searchFields = []string{"title"}
	}
	return info
}

// resolve classifies a declared name: child collection first, then a
// structural attribute, then a computed field, otherwise a plain value.
func (r *Registry) resolve(kind Kind, name string, def TypeDef) FieldDescriptor {
	if elem, ok := def.Children[name]; ok {
		return FieldDescriptor{
			Name:    name,
			Kind:    FieldChildren,
			Element: &RecordType{Name: name, Fields: elem},
			Get:     childrenAccessor(name),
		}
	}
	if name == "tags" {
		return FieldDescriptor{Name: name, Kind: FieldTags, Get: attributeAccessor(name)}
	}
	if structural(kind, name) {
		return FieldDescriptor{Name: name, Kind: FieldStructural, Get: attributeAccessor(name)}
	}
	if fn, ok := r.computed[kind][name]; ok {
		return FieldDescriptor{Name: name, Kind: FieldComputed, Get: fn}
	}
	return FieldDescriptor{Name: name, Kind: FieldPlain, Get: attributeAccessor(name)}
}

func baseFields(kind Kind) []string {
	switch kind {
	case KindImage:
		return []string{"id", "title", "tags", "width", "height"}
	case KindDocument:
		return []string{"id", "title", "tags"}
	default:
		return []string{"id", "title"}
	}
}

func structural(kind Kind, name string) bool {
	switch name {
	case "id", "title":
		return true
	}
	switch kind {
	case KindPage:
		return name == "slug"
	case KindImage:
		return name == "width" || name == "height" || name == "file"
	case KindDocument:
		return name == "file"
	}
	return false
}

func attributeAccessor(name string) Accessor {
	return func(obj Object) any {
		v, _ := Attribute(obj, name)
		return v
	}
}

func childrenAccessor(name string) Accessor {
	return func(obj Object) any {
		if p, ok := obj.(*Page); ok {
			return p.Children[name]
		}
		return nil
	}
}
