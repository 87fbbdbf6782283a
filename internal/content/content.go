// Package content defines the resources served by the API (pages, images and
// documents) and the field registry deciding which of their attributes are
// exposed.
package content

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned by storage collaborators when an object does not exist.
var ErrNotFound = errors.New("content: not found")

// Kind identifies one of the three resource families.
type Kind int

const (
	KindPage Kind = iota
	KindImage
	KindDocument
)

// String returns the singular name of the kind
func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Collection returns the plural name used in URLs and listing envelopes
func (k Kind) Collection() string {
	switch k {
	case KindPage:
		return "pages"
	case KindImage:
		return "images"
	case KindDocument:
		return "documents"
	default:
		return "unknown"
	}
}

// ParseKind accepts singular or plural kind names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "page", "pages":
		return KindPage, nil
	case "image", "images":
		return KindImage, nil
	case "document", "documents":
		return KindDocument, nil
	}
	return 0, fmt.Errorf("unknown content kind %q", s)
}

// Object is implemented by every servable resource
type Object interface {
	ObjectID() int
	ObjectKind() Kind
}

// Record is one element of a page's child collection (e.g. a related link)
type Record struct {
	Fields map[string]any
}

// Page is a node of the content tree.
type Page struct {
	ID         int
	Type       string
	Title      string
	Slug       string
	Path       string
	Depth      int
	ParentID   int
	Live       bool
	Restricted bool
	Fields     map[string]any
	Tags       []string
	Children   map[string][]Record
}

func (p *Page) ObjectID() int    { return p.ID }
func (p *Page) ObjectKind() Kind { return KindPage }

// IsAncestorOf reports whether p is a strict ancestor of other in the tree
func (p *Page) IsAncestorOf(other *Page) bool {
	return len(other.Path) > len(p.Path) && strings.HasPrefix(other.Path, p.Path)
}

// Image is a media library item
type Image struct {
	ID     int
	Title  string
	Width  int
	Height int
	File   string
	Tags   []string
	Fields map[string]any
}

func (i *Image) ObjectID() int    { return i.ID }
func (i *Image) ObjectKind() Kind { return KindImage }

// Document is a file library item
type Document struct {
	ID     int
	Title  string
	File   string
	Tags   []string
	Fields map[string]any
}

func (d *Document) ObjectID() int    { return d.ID }
func (d *Document) ObjectKind() Kind { return KindDocument }

// Filename returns the base name of the stored file
func (d *Document) Filename() string {
	if d.File == "" {
		return ""
	}
	return path.Base(d.File)
}

// URL returns the site-relative download path of the document
func (d *Document) URL() string {
	return fmt.Sprintf("/documents/%d/%s", d.ID, d.Filename())
}

// Site maps a hostname and port to a root page of the tree.
type Site struct {
	Hostname   string
	Port       int
	RootPageID int
	IsDefault  bool
}

// RootURL returns the URL the site is served from.
func (s *Site) RootURL() string {
	switch s.Port {
	case 80:
		return "http://" + s.Hostname
	case 443:
		return "https://" + s.Hostname
	default:
		return "http://" + s.Hostname + ":" + strconv.Itoa(s.Port)
	}
}

// Attribute returns the stored value of name on obj: a structural attribute
// when the kind has one, otherwise the subtype value from Fields. The second
// result is false when the object carries no such value.
func Attribute(obj Object, name string) (any, bool) {
	switch o := obj.(type) {
	case *Page:
		switch name {
		case "id":
			return o.ID, true
		case "title":
			return o.Title, true
		case "slug":
			return o.Slug, true
		case "tags":
			return o.Tags, true
		}
		v, ok := o.Fields[name]
		return v, ok
	case *Image:
		switch name {
		case "id":
			return o.ID, true
		case "title":
			return o.Title, true
		case "width":
			return o.Width, true
		case "height":
			return o.Height, true
		case "file":
			return o.File, true
		case "tags":
			return o.Tags, true
		}
		v, ok := o.Fields[name]
		return v, ok
	case *Document:
		switch name {
		case "id":
			return o.ID, true
		case "title":
			return o.Title, true
		case "file":
			return o.File, true
		case "tags":
			return o.Tags, true
		}
		v, ok := o.Fields[name]
		return v, ok
	}
	return nil, false
}

// Text returns the canonical text form of a stored value, the form equality
// filters compare against. Nil has no text form.
func Text(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case time.Time:
		return formatTime(x), true
	default:
		return fmt.Sprint(x), true
	}
}

// JSONValue converts a stored value to something encoding/json renders
// faithfully. Primitives and JSON-shaped composites pass through, anything
// else is reduced to its text form.
func JSONValue(v any) any {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return []string{}
		}
		return x
	case nil, string, bool, int, int64, float64, []any, map[string]any:
		return x
	case time.Time:
		return formatTime(x)
	default:
		s, _ := Text(x)
		return s
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
