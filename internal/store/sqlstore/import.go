package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/store/fixtures"
)

// ImportStats counts the rows written by Import
type ImportStats struct {
	Sites     int
	Pages     int
	Images    int
	Documents int
}

// Import replaces the stored content with the dataset in one transaction
func (s *Store) Import(ctx context.Context, ds *fixtures.Dataset) (ImportStats, error) {
	var stats ImportStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer s.rollback(tx)

	for _, table := range []string{"field_values", "tags", "sites", "pages", "images", "documents"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return stats, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	w := &writer{tx: tx, dialect: s.dialect}
	for _, site := range ds.Sites {
		if err := w.site(ctx, site); err != nil {
			return stats, err
		}
		stats.Sites++
	}
	for _, p := range ds.Pages {
		if err := w.page(ctx, p); err != nil {
			return stats, err
		}
		stats.Pages++
	}
	for _, img := range ds.Images {
		if err := w.image(ctx, img); err != nil {
			return stats, err
		}
		stats.Images++
	}
	for _, doc := range ds.Documents {
		if err := w.document(ctx, doc); err != nil {
			return stats, err
		}
		stats.Documents++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info("imported site",
		zap.Int("sites", stats.Sites),
		zap.Int("pages", stats.Pages),
		zap.Int("images", stats.Images),
		zap.Int("documents", stats.Documents),
	)
	return stats, nil
}

type writer struct {
	tx      *sql.Tx
	dialect Dialect
}

func (w *writer) insert(ctx context.Context, table string, columns []string, values ...interface{}) error {
	marks := make([]string, len(values))
	for i := range values {
		marks[i] = w.dialect.placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(marks, ", "))
	if _, err := w.tx.ExecContext(ctx, stmt, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (w *writer) site(ctx context.Context, site *content.Site) error {
	return w.insert(ctx, "sites",
		[]string{"hostname", "port", "root_page_id", "is_default"},
		site.Hostname, site.Port, site.RootPageID, flag(site.IsDefault))
}

func (w *writer) page(ctx context.Context, p *content.Page) error {
	fields, tags, err := encode(p.Fields, p.Tags)
	if err != nil {
		return fmt.Errorf("page %d: %w", p.ID, err)
	}
	collections := make(map[string][]map[string]any, len(p.Children))
	for name, records := range p.Children {
		items := make([]map[string]any, len(records))
		for i, r := range records {
			items[i] = normalize(r.Fields)
		}
		collections[name] = items
	}
	children, err := json.Marshal(collections)
	if err != nil {
		return fmt.Errorf("page %d: failed to encode child collections: %w", p.ID, err)
	}

	if err := w.insert(ctx, "pages",
		[]string{"id", "type", "title", "slug", "path", "depth", "parent_id", "live", "restricted", "fields", "tags", "children"},
		p.ID, p.Type, p.Title, p.Slug, p.Path, p.Depth, p.ParentID, flag(p.Live), flag(p.Restricted),
		fields, tags, string(children)); err != nil {
		return err
	}
	return w.lookups(ctx, content.KindPage, p.ID, p.Fields, p.Tags)
}

func (w *writer) image(ctx context.Context, img *content.Image) error {
	fields, tags, err := encode(img.Fields, img.Tags)
	if err != nil {
		return fmt.Errorf("image %d: %w", img.ID, err)
	}
	if err := w.insert(ctx, "images",
		[]string{"id", "title", "width", "height", "file", "fields", "tags"},
		img.ID, img.Title, img.Width, img.Height, img.File, fields, tags); err != nil {
		return err
	}
	return w.lookups(ctx, content.KindImage, img.ID, img.Fields, img.Tags)
}

func (w *writer) document(ctx context.Context, doc *content.Document) error {
	fields, tags, err := encode(doc.Fields, doc.Tags)
	if err != nil {
		return fmt.Errorf("document %d: %w", doc.ID, err)
	}
	if err := w.insert(ctx, "documents",
		[]string{"id", "title", "file", "fields", "tags"},
		doc.ID, doc.Title, doc.File, fields, tags); err != nil {
		return err
	}
	return w.lookups(ctx, content.KindDocument, doc.ID, doc.Fields, doc.Tags)
}

// lookups writes the rows equality filters, ordering and tag filters read.
// Values without a text form are skipped and so never match a filter.
func (w *writer) lookups(ctx context.Context, kind content.Kind, id int, fields map[string]any, tags []string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		text, ok := content.Text(fields[name])
		if !ok {
			continue
		}
		if err := w.insert(ctx, "field_values",
			[]string{"kind", "object_id", "name", "text_value", "num_value"},
			kind.String(), id, name, text, numeric(fields[name])); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if err := w.insert(ctx, "tags", []string{"kind", "object_id", "name"}, kind.String(), id, tag); err != nil {
			return err
		}
	}
	return nil
}

func encode(fields map[string]any, tags []string) (string, string, error) {
	f, err := json.Marshal(normalize(fields))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode fields: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(f), string(t), nil
}

// normalize reduces values to what survives a JSON round trip unchanged
func normalize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = content.JSONValue(v)
	}
	return out
}

// numeric returns the sort value of numbers and nil for everything else
func numeric(v any) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
