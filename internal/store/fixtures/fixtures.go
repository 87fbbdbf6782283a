// Package fixtures loads a site file: a YAML description of the content
// types, sites, page tree, images and documents. The same dataset seeds the
// memory store at startup and the SQL store through the import command.
package fixtures

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/contentapi/internal/content"
)

// File is the on-disk layout of a site file
type File struct {
	Types     TypesSection   `yaml:"types"`
	Sites     []SiteSpec     `yaml:"sites"`
	Pages     []PageSpec     `yaml:"pages"`
	Images    []ImageSpec    `yaml:"images"`
	Documents []DocumentSpec `yaml:"documents"`
}

// TypesSection declares the field registries
type TypesSection struct {
	Pages     []TypeSpec `yaml:"pages"`
	Images    TypeSpec   `yaml:"images"`
	Documents TypeSpec   `yaml:"documents"`
}

// TypeSpec declares one type
type TypeSpec struct {
	Name     string              `yaml:"name"`
	Fields   []string            `yaml:"fields"`
	Children map[string][]string `yaml:"children"`
	Search   []string            `yaml:"search"`
}

// SiteSpec declares a site
type SiteSpec struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`
	RootPage int    `yaml:"root_page"`
	Default  bool   `yaml:"default"`
}

// PageSpec declares a page and, through Pages, its subtree
type PageSpec struct {
	ID          int                         `yaml:"id"`
	Type        string                      `yaml:"type"`
	Title       string                      `yaml:"title"`
	Slug        string                      `yaml:"slug"`
	Live        *bool                       `yaml:"live"`
	Restricted  bool                        `yaml:"restricted"`
	Tags        []string                    `yaml:"tags"`
	Fields      map[string]any              `yaml:"fields"`
	Collections map[string][]map[string]any `yaml:"collections"`
	Pages       []PageSpec                  `yaml:"pages"`
}

// ImageSpec declares an image
type ImageSpec struct {
	ID     int            `yaml:"id"`
	Title  string         `yaml:"title"`
	Width  int            `yaml:"width"`
	Height int            `yaml:"height"`
	File   string         `yaml:"file"`
	Tags   []string       `yaml:"tags"`
	Fields map[string]any `yaml:"fields"`
}

// DocumentSpec declares a document
type DocumentSpec struct {
	ID     int            `yaml:"id"`
	Title  string         `yaml:"title"`
	File   string         `yaml:"file"`
	Tags   []string       `yaml:"tags"`
	Fields map[string]any `yaml:"fields"`
}

// Dataset is a validated site file with the tree flattened
type Dataset struct {
	Types     TypesSection
	Sites     []*content.Site
	Pages     []*content.Page
	Images    []*content.Image
	Documents []*content.Document
}

// Seeder is implemented by stores that can be filled from a dataset
type Seeder interface {
	PutPage(*content.Page)
	PutImage(*content.Image)
	PutDocument(*content.Document)
	PutSite(*content.Site)
}

// Load reads and parses a site file
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site file: %w", err)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Parse decodes and validates site file contents
func Parse(data []byte) (*Dataset, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse site file: %w", err)
	}
	return Build(&f)
}

// Build validates a decoded site file and flattens its page tree
func Build(f *File) (*Dataset, error) {
	ds := &Dataset{Types: f.Types}

	seen := make(map[int]bool)
	for i, spec := range f.Pages {
		if err := ds.addPage(spec, "", i+1, 0, seen); err != nil {
			return nil, err
		}
	}

	for _, spec := range f.Images {
		if spec.ID <= 0 {
			return nil, fmt.Errorf("image %q: id must be positive", spec.Title)
		}
		ds.Images = append(ds.Images, &content.Image{
			ID:     spec.ID,
			Title:  spec.Title,
			Width:  spec.Width,
			Height: spec.Height,
			File:   spec.File,
			Tags:   spec.Tags,
			Fields: spec.Fields,
		})
	}
	if err := unique("image", len(ds.Images), func(i int) int { return ds.Images[i].ID }); err != nil {
		return nil, err
	}

	for _, spec := range f.Documents {
		if spec.ID <= 0 {
			return nil, fmt.Errorf("document %q: id must be positive", spec.Title)
		}
		ds.Documents = append(ds.Documents, &content.Document{
			ID:     spec.ID,
			Title:  spec.Title,
			File:   spec.File,
			Tags:   spec.Tags,
			Fields: spec.Fields,
		})
	}
	if err := unique("document", len(ds.Documents), func(i int) int { return ds.Documents[i].ID }); err != nil {
		return nil, err
	}

	for _, s := range f.Sites {
		if !seen[s.RootPage] {
			return nil, fmt.Errorf("site %s: root page %d does not exist", s.Hostname, s.RootPage)
		}
		port := s.Port
		if port == 0 {
			port = 80
		}
		ds.Sites = append(ds.Sites, &content.Site{
			Hostname:   s.Hostname,
			Port:       port,
			RootPageID: s.RootPage,
			IsDefault:  s.Default,
		})
	}

	if len(ds.Sites) == 0 {
		for _, p := range ds.Pages {
			if p.Depth == 2 {
				ds.Sites = append(ds.Sites, &content.Site{Hostname: "localhost", Port: 80, RootPageID: p.ID, IsDefault: true})
				break
			}
		}
	}

	return ds, nil
}

// Registry builds the field registries declared by the dataset
func (d *Dataset) Registry() (*content.Registry, error) {
	reg := content.NewRegistry()
	for _, t := range d.Types.Pages {
		if err := reg.DefinePageType(typeDef(t)); err != nil {
			return nil, err
		}
	}
	if err := reg.DefineFields(content.KindImage, typeDef(d.Types.Images)); err != nil {
		return nil, err
	}
	if err := reg.DefineFields(content.KindDocument, typeDef(d.Types.Documents)); err != nil {
		return nil, err
	}
	return reg, nil
}

// Seed copies the dataset into a store
func (d *Dataset) Seed(s Seeder) {
	for _, p := range d.Pages {
		s.PutPage(p)
	}
	for _, img := range d.Images {
		s.PutImage(img)
	}
	for _, doc := range d.Documents {
		s.PutDocument(doc)
	}
	for _, site := range d.Sites {
		s.PutSite(site)
	}
}

func (d *Dataset) addPage(spec PageSpec, parentPath string, position, parentID int, seen map[int]bool) error {
	if spec.ID <= 0 {
		return fmt.Errorf("page %q: id must be positive", spec.Title)
	}
	if seen[spec.ID] {
		return fmt.Errorf("duplicate page id %d", spec.ID)
	}
	seen[spec.ID] = true

	typ := spec.Type
	if typ == "" {
		typ = content.BasePageType
	}
	live := true
	if spec.Live != nil {
		live = *spec.Live
	}
	slug := spec.Slug
	if slug == "" {
		slug = slugify(spec.Title)
	}

	p := &content.Page{
		ID:         spec.ID,
		Type:       typ,
		Title:      spec.Title,
		Slug:       slug,
		Path:       parentPath + pathStep(position),
		Depth:      len(parentPath)/stepLen + 1,
		ParentID:   parentID,
		Live:       live,
		Restricted: spec.Restricted,
		Fields:     spec.Fields,
		Tags:       spec.Tags,
	}
	if len(spec.Collections) > 0 {
		p.Children = make(map[string][]content.Record, len(spec.Collections))
		for name, items := range spec.Collections {
			records := make([]content.Record, len(items))
			for i, item := range items {
				records[i] = content.Record{Fields: item}
			}
			p.Children[name] = records
		}
	}
	d.Pages = append(d.Pages, p)

	for i, child := range spec.Pages {
		if err := d.addPage(child, p.Path, i+1, p.ID, seen); err != nil {
			return err
		}
	}
	return nil
}

const stepLen = 4

// pathStep encodes a sibling position as a fixed-width base-36 segment so
// that tree paths sort lexically in tree order
func pathStep(position int) string {
	s := strings.ToUpper(strconv.FormatInt(int64(position), 36))
	return strings.Repeat("0", stepLen-len(s)) + s
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func typeDef(t TypeSpec) content.TypeDef {
	return content.TypeDef{
		Name:     t.Name,
		Fields:   t.Fields,
		Children: t.Children,
		Search:   t.Search,
	}
}

func unique(kind string, n int, id func(int) int) error {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = id(i)
	}
	sort.Ints(ids)
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return fmt.Errorf("duplicate %s id %d", kind, ids[i])
		}
	}
	return nil
}
