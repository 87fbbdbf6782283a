// Package memory provides an in-process content store. It evaluates
// candidate set specs directly over its maps and reports changes to
// subscribers, which is how cache purging is driven in tests and in the
// default configuration.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

// Store holds pages, images, documents and sites in memory
type Store struct {
	mu          sync.RWMutex
	pages       map[int]*content.Page
	drafts      map[int]*content.Page
	images      map[int]*content.Image
	documents   map[int]*content.Document
	sites       []*content.Site
	subscribers []content.EventHandler
}

// New creates an empty store
func New() *Store {
	return &Store{
		pages:     make(map[int]*content.Page),
		drafts:    make(map[int]*content.Page),
		images:    make(map[int]*content.Image),
		documents: make(map[int]*content.Document),
	}
}

// PutPage stores a page without emitting an event. Used when seeding.
func (s *Store) PutPage(p *content.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.ID] = p
}

// PutImage stores an image without emitting an event
func (s *Store) PutImage(img *content.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.ID] = img
}

// PutDocument stores a document without emitting an event
func (s *Store) PutDocument(d *content.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[d.ID] = d
}

// PutSite adds a site
func (s *Store) PutSite(site *content.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites = append(s.sites, site)
}

// Subscribe registers a handler for change events
func (s *Store) Subscribe(h content.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, h)
}

// Page returns any stored page, live or not
func (s *Store) Page(_ context.Context, id int) (*content.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", id, content.ErrNotFound)
	}
	return p, nil
}

// Image returns a stored image
func (s *Store) Image(_ context.Context, id int) (*content.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return nil, fmt.Errorf("image %d: %w", id, content.ErrNotFound)
	}
	return img, nil
}

// Document returns a stored document
func (s *Store) Document(_ context.Context, id int) (*content.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, content.ErrNotFound)
	}
	return d, nil
}

// Sites returns the configured sites
func (s *Store) Sites(_ context.Context) ([]*content.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*content.Site(nil), s.sites...), nil
}

// Draft returns the latest unpublished revision saved for a page, if any
func (s *Store) Draft(id int) (*content.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	return d, ok
}

// SaveDraft records a new revision without changing what is served
func (s *Store) SaveDraft(_ context.Context, p *content.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pages[p.ID]; !ok {
		return fmt.Errorf("page %d: %w", p.ID, content.ErrNotFound)
	}
	s.drafts[p.ID] = p
	return nil
}

// PublishPage makes a page live, applying its pending draft when there is one
func (s *Store) PublishPage(_ context.Context, id int) error {
	s.mu.Lock()
	current, ok := s.pages[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("page %d: %w", id, content.ErrNotFound)
	}
	next := *current
	if draft, ok := s.drafts[id]; ok {
		next = *draft
		next.Path, next.Depth, next.ParentID = current.Path, current.Depth, current.ParentID
		delete(s.drafts, id)
	}
	next.Live = true
	s.pages[id] = &next
	s.mu.Unlock()

	s.emit(content.Event{Kind: content.KindPage, ID: id, Action: content.ActionPublished})
	return nil
}

// UnpublishPage takes a page offline
func (s *Store) UnpublishPage(_ context.Context, id int) error {
	s.mu.Lock()
	current, ok := s.pages[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("page %d: %w", id, content.ErrNotFound)
	}
	next := *current
	next.Live = false
	s.pages[id] = &next
	s.mu.Unlock()

	s.emit(content.Event{Kind: content.KindPage, ID: id, Action: content.ActionUnpublished})
	return nil
}

// DeletePage removes a page and its whole subtree
func (s *Store) DeletePage(_ context.Context, id int) error {
	s.mu.Lock()
	root, ok := s.pages[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("page %d: %w", id, content.ErrNotFound)
	}
	var removed []int
	for pid, p := range s.pages {
		if pid == id || root.IsAncestorOf(p) {
			removed = append(removed, pid)
		}
	}
	sort.Ints(removed)
	for _, pid := range removed {
		delete(s.pages, pid)
		delete(s.drafts, pid)
	}
	s.mu.Unlock()

	for _, pid := range removed {
		s.emit(content.Event{Kind: content.KindPage, ID: pid, Action: content.ActionDeleted})
	}
	return nil
}

// SaveImage creates or replaces an image
func (s *Store) SaveImage(_ context.Context, img *content.Image) error {
	s.PutImage(img)
	s.emit(content.Event{Kind: content.KindImage, ID: img.ID, Action: content.ActionSaved})
	return nil
}

// DeleteImage removes an image
func (s *Store) DeleteImage(_ context.Context, id int) error {
	s.mu.Lock()
	if _, ok := s.images[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("image %d: %w", id, content.ErrNotFound)
	}
	delete(s.images, id)
	s.mu.Unlock()

	s.emit(content.Event{Kind: content.KindImage, ID: id, Action: content.ActionDeleted})
	return nil
}

// SaveDocument creates or replaces a document
func (s *Store) SaveDocument(_ context.Context, d *content.Document) error {
	s.PutDocument(d)
	s.emit(content.Event{Kind: content.KindDocument, ID: d.ID, Action: content.ActionSaved})
	return nil
}

// DeleteDocument removes a document
func (s *Store) DeleteDocument(_ context.Context, id int) error {
	s.mu.Lock()
	if _, ok := s.documents[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("document %d: %w", id, content.ErrNotFound)
	}
	delete(s.documents, id)
	s.mu.Unlock()

	s.emit(content.Event{Kind: content.KindDocument, ID: id, Action: content.ActionDeleted})
	return nil
}

// Count implements query.Source
func (s *Store) Count(ctx context.Context, spec query.Spec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filter(spec)), nil
}

// Fetch implements query.Source
func (s *Store) Fetch(ctx context.Context, spec query.Spec) ([]content.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	objs := s.filter(spec)
	s.mu.RUnlock()

	order(objs, spec)
	return slice(objs, spec.Offset, spec.Limit), nil
}

func (s *Store) emit(ev content.Event) {
	s.mu.RLock()
	subs := append([]content.EventHandler(nil), s.subscribers...)
	s.mu.RUnlock()

	for _, h := range subs {
		h(ev)
	}
}

// filter must be called with the read lock held
func (s *Store) filter(spec query.Spec) []content.Object {
	var out []content.Object
	s.each(spec.Kind, func(obj content.Object) {
		for _, c := range spec.Conditions {
			if !s.matches(obj, c) {
				return
			}
		}
		out = append(out, obj)
	})
	return out
}

func (s *Store) each(kind content.Kind, fn func(content.Object)) {
	switch kind {
	case content.KindPage:
		for _, p := range s.pages {
			fn(p)
		}
	case content.KindImage:
		for _, img := range s.images {
			fn(img)
		}
	case content.KindDocument:
		for _, d := range s.documents {
			fn(d)
		}
	}
}

func slice(objs []content.Object, offset, limit int) []content.Object {
	if offset >= len(objs) {
		return []content.Object{}
	}
	objs = objs[offset:]
	if limit >= 0 && limit < len(objs) {
		objs = objs[:limit]
	}
	return objs
}
