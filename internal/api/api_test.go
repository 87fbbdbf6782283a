package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
	"github.com/conduit-lang/contentapi/internal/search"
	"github.com/conduit-lang/contentapi/internal/store/fixtures"
	"github.com/conduit-lang/contentapi/internal/store/memory"
	"github.com/conduit-lang/contentapi/internal/web/router"
)

const siteFile = "../store/fixtures/testdata/site.yaml"

func seededStore(t *testing.T) (*content.Registry, *memory.Store) {
	t.Helper()
	ds, err := fixtures.Load(siteFile)
	require.NoError(t, err)
	reg, err := ds.Registry()
	require.NoError(t, err)
	store := memory.New()
	ds.Seed(store)
	return reg, store
}

func newTestHandler(t *testing.T, configure ...func(*Options)) http.Handler {
	t.Helper()
	reg, store := seededStore(t)
	opts := Options{
		Registry: reg,
		Store:    store,
		Search:   search.NewDatabaseBackend(false),
		Config:   DefaultConfig(),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	return mount(t, opts)
}

func mount(t *testing.T, opts Options) http.Handler {
	t.Helper()
	a, err := New(opts)
	require.NoError(t, err)

	r := router.NewRouter()
	router.SetupDefaultErrorHandlers(r)
	var regErr error
	r.Group("/api", func(g *router.Router) {
		regErr = a.Register(g)
	})
	require.NoError(t, regErr)
	return r
}

func do(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func listing(collection string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	target := "http://localhost/api/v1/" + collection + "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return target
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func idList(t *testing.T, body map[string]any, collection string) []int {
	t.Helper()
	items, ok := body[collection].([]any)
	require.True(t, ok, "missing %s in %v", collection, body)
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = int(item.(map[string]any)["id"].(float64))
	}
	return out
}

func totalCount(t *testing.T, body map[string]any) int {
	t.Helper()
	return int(body["meta"].(map[string]any)["total_count"].(float64))
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":`+mustJSON(t, message)+`}`, w.Body.String())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestPageListing_Basics(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, listing("pages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "{\n    \"meta\": {\n        \"total_count\": 11"), w.Body.String())

	body := decode(t, w)
	assert.Equal(t, 11, totalCount(t, body))
	assert.Equal(t, []int{2, 4, 8, 10, 11, 5, 16, 18, 19, 6, 12}, idList(t, body, "pages"))

	for _, item := range body["pages"].([]any) {
		page := item.(map[string]any)
		assert.ElementsMatch(t, []string{"id", "meta", "title"}, keys(page))
		assert.NotContains(t, page["meta"], "parent_id")
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestPageListing_SiteScoping(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, "http://other.example.com/api/v1/pages/"))
	assert.Equal(t, []int{3}, idList(t, body, "pages"))

	// an unknown host falls back to the default site
	body = decode(t, do(h, "http://unknown.example.net:8080/api/v1/pages/"))
	assert.Equal(t, 11, totalCount(t, body))
}

func TestPageListing_Type(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage"})))
	assert.Equal(t, []int{16, 18, 19}, idList(t, body, "pages"))
	assert.Equal(t, 3, totalCount(t, body))
	for _, item := range body["pages"].([]any) {
		assert.Equal(t, "tests.BlogEntryPage", item.(map[string]any)["meta"].(map[string]any)["type"])
	}

	assertError(t, do(h, listing("pages", map[string]string{"type": "tests.IDontExist"})),
		http.StatusNotFound, "Type doesn't exist")
}

func TestPageListing_Fields(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{
		"type":   "tests.BlogEntryPage",
		"fields": "title,date,feed_image",
	})))
	for _, item := range body["pages"].([]any) {
		assert.ElementsMatch(t, []string{"id", "meta", "title", "date", "feed_image"}, keys(item.(map[string]any)))
	}
	first := body["pages"].([]any)[0].(map[string]any)
	assert.Equal(t, "2013-12-02", first["date"])

	// child collections are never part of a listing
	body = decode(t, do(h, listing("pages", map[string]string{
		"type":   "tests.BlogEntryPage",
		"fields": "title,related_links",
	})))
	for _, item := range body["pages"].([]any) {
		assert.ElementsMatch(t, []string{"id", "meta", "title"}, keys(item.(map[string]any)))
	}

	tests := []struct {
		fields  string
		message string
	}{
		{"title,related_links", "unknown fields: related_links"},
		{"path", "unknown fields: path"},
		{"123,title,abc", "unknown fields: 123, abc"},
	}
	for _, tt := range tests {
		assertError(t, do(h, listing("pages", map[string]string{"fields": tt.fields})), http.StatusBadRequest, tt.message)
	}
}

func TestPageListing_Filtering(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{"title": "Home page"})))
	assert.Equal(t, []int{2}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "date": "2013-12-02"})))
	assert.Equal(t, []int{16}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "tags": "wagtail"})))
	assert.Equal(t, []int{16, 18}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "tags": "wagtail, bird"})))
	assert.Equal(t, []int{16}, idList(t, body, "pages"))

	// filters on child collections have no effect
	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "related_links": "x"})))
	assert.Equal(t, 3, totalCount(t, body))

	assertError(t, do(h, listing("pages", map[string]string{"date": "2013-12-02"})),
		http.StatusBadRequest, "query parameter is not an operation or a recognised field: date")
	assertError(t, do(h, listing("pages", map[string]string{"not_a_field": "abc", "also_not": "1"})),
		http.StatusBadRequest, "query parameter is not an operation or a recognised field: also_not, not_a_field")
}

func TestPageListing_ChildOf(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{"child_of": "5"})))
	assert.Equal(t, []int{16, 18, 19}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"child_of": "4"})))
	assert.Equal(t, []int{8, 10, 11}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"child_of": "5", "type": "tests.EventPage"})))
	assert.Empty(t, idList(t, body, "pages"))

	// children of a private section stay hidden
	body = decode(t, do(h, listing("pages", map[string]string{"child_of": "7"})))
	assert.Equal(t, 0, totalCount(t, body))

	for _, parent := range []string{"1000", "abc", ""} {
		assertError(t, do(h, listing("pages", map[string]string{"child_of": parent})),
			http.StatusNotFound, "Parent page doesn't exist")
	}
}

func TestPageListing_Ordering(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{"order": "title"})))
	assert.Equal(t, []int{6, 18, 5, 16, 8, 12, 4, 11, 2, 10, 19}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"order": "-title"})))
	assert.Equal(t, []int{19, 10, 2, 11, 4, 12, 8, 16, 5, 18, 6}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "order": "title"})))
	assert.Equal(t, []int{18, 16, 19}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "order": "-date"})))
	assert.Equal(t, []int{19, 18, 16}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"order": "random"})))
	assert.ElementsMatch(t, []int{2, 4, 8, 10, 11, 5, 16, 18, 19, 6, 12}, idList(t, body, "pages"))

	tests := []struct {
		params  map[string]string
		message string
	}{
		{map[string]string{"order": "-random"}, "cannot order by 'random' (unknown field)"},
		{map[string]string{"order": "not_a_field"}, "cannot order by 'not_a_field' (unknown field)"},
		{map[string]string{"type": "tests.BlogEntryPage", "order": "tags"}, "cannot order by 'tags' (unknown field)"},
		{map[string]string{"type": "tests.BlogEntryPage", "order": "related_links"}, "cannot order by 'related_links' (unknown field)"},
		{map[string]string{"order": "random", "offset": "10"}, "random ordering with offset is not supported"},
		{map[string]string{"order": "random", "offset": "0"}, "random ordering with offset is not supported"},
	}
	for _, tt := range tests {
		assertError(t, do(h, listing("pages", tt.params)), http.StatusBadRequest, tt.message)
	}
}

func TestPageListing_Pagination(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{"limit": "2"})))
	assert.Equal(t, []int{2, 4}, idList(t, body, "pages"))
	assert.Equal(t, 11, totalCount(t, body))

	body = decode(t, do(h, listing("pages", map[string]string{"offset": "5"})))
	assert.Equal(t, 5, idList(t, body, "pages")[0])
	assert.Equal(t, 11, totalCount(t, body))

	body = decode(t, do(h, listing("pages", map[string]string{"offset": "50"})))
	assert.Empty(t, idList(t, body, "pages"))
	assert.Equal(t, 11, totalCount(t, body))

	body = decode(t, do(h, listing("pages", map[string]string{"limit": "0"})))
	assert.Empty(t, idList(t, body, "pages"))

	tests := []struct {
		params  map[string]string
		message string
	}{
		{map[string]string{"limit": "abc"}, "limit must be a positive integer"},
		{map[string]string{"limit": "-1"}, "limit must be a positive integer"},
		{map[string]string{"limit": "1000"}, "limit cannot be higher than 20"},
		{map[string]string{"offset": "abc"}, "offset must be a positive integer"},
		{map[string]string{"offset": "-3"}, "offset must be a positive integer"},
	}
	for _, tt := range tests {
		assertError(t, do(h, listing("pages", tt.params)), http.StatusBadRequest, tt.message)
	}
}

func TestPageListing_LimitMax(t *testing.T) {
	h := newTestHandler(t, func(o *Options) { o.Config.LimitMax = 10 })
	assertError(t, do(h, listing("pages", map[string]string{"limit": "1000"})),
		http.StatusBadRequest, "limit cannot be higher than 10")
	assertError(t, do(h, listing("pages", map[string]string{"limit": "20"})),
		http.StatusBadRequest, "limit cannot be higher than 10")

	body := decode(t, do(h, listing("pages", nil)))
	assert.Len(t, idList(t, body, "pages"), 10)
	assert.Equal(t, 11, totalCount(t, body))

	h = newTestHandler(t, func(o *Options) { o.Config.LimitMax = 2 })
	body = decode(t, do(h, listing("pages", nil)))
	assert.Len(t, idList(t, body, "pages"), 2)
}

func TestPageListing_Search(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("pages", map[string]string{"search": "blog"})))
	assert.ElementsMatch(t, []int{5, 16, 18, 19}, idList(t, body, "pages"))
	assert.Equal(t, 4, totalCount(t, body))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "search": "blog"})))
	assert.ElementsMatch(t, []int{16, 18, 19}, idList(t, body, "pages"))

	body = decode(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "search": "wagtail"})))
	assert.ElementsMatch(t, []int{16, 18}, idList(t, body, "pages"), "body is a search field of blog entries")

	for _, order := range []string{"title", "not_a_field", "random"} {
		assertError(t, do(h, listing("pages", map[string]string{"search": "blog", "order": order})),
			http.StatusBadRequest, "ordering with a search query is not supported")
	}

	assertError(t, do(h, listing("pages", map[string]string{"type": "tests.BlogEntryPage", "tags": "bird", "search": "blog"})),
		http.StatusBadRequest, "filtering by tag with a search query is not supported")

	disabled := newTestHandler(t, func(o *Options) { o.Config.SearchEnabled = false })
	assertError(t, do(disabled, listing("pages", map[string]string{"search": "blog"})),
		http.StatusBadRequest, "search is disabled")

	noBackend := newTestHandler(t, func(o *Options) { o.Search = nil })
	assertError(t, do(noBackend, listing("pages", map[string]string{"search": "blog"})),
		http.StatusBadRequest, "search is disabled")
}

func TestPageDetail(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, "http://localhost/api/v1/pages/16/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.Equal(t, map[string]any{"type": "tests.BlogEntryPage", "parent_id": float64(5)}, body["meta"])
	assert.Equal(t, "2013-12-02", body["date"])
	assert.Equal(t, "<p>Wagtail is a content management system</p>", body["body"])
	assert.Equal(t, []any{"wagtail", "bird"}, body["tags"])

	links := body["related_links"].([]any)
	require.Len(t, links, 2)
	assert.Equal(t, map[string]any{"title": "Wagtail", "link": "https://wagtail.org/"}, links[0])

	for _, item := range body["carousel_items"].([]any) {
		assert.ElementsMatch(t, []string{"embed_url", "link", "caption", "image"}, keys(item.(map[string]any)))
	}

	// key order is id, meta, then registry order
	assert.Less(t, strings.Index(w.Body.String(), `"id"`), strings.Index(w.Body.String(), `"meta"`))
	assert.Less(t, strings.Index(w.Body.String(), `"meta"`), strings.Index(w.Body.String(), `"title"`))
	assert.Less(t, strings.Index(w.Body.String(), `"date"`), strings.Index(w.Body.String(), `"related_links"`))

	// query parameters do not change a detail view
	assert.Equal(t, w.Body.String(), do(h, "http://localhost/api/v1/pages/16/?fields=title&limit=abc").Body.String())
}

func TestPageDetail_AllFields(t *testing.T) {
	h := newTestHandler(t)
	reg, _ := seededStore(t)

	for id, typeName := range map[string]string{"8": "tests.EventPage", "16": "tests.BlogEntryPage", "6": "tests.StandardPage"} {
		body := decode(t, do(h, "http://localhost/api/v1/pages/"+id+"/"))
		typ, ok := reg.Type(typeName)
		require.True(t, ok)

		meta := body["meta"].(map[string]any)
		assert.Equal(t, typeName, meta["type"])
		assert.Contains(t, meta, "parent_id")
		for _, f := range typ.Fields() {
			if f.Kind == content.FieldChildren && !f.Element.HasRegistry() {
				assert.NotContains(t, body, f.Name)
				continue
			}
			assert.Contains(t, body, f.Name, "page %s field %s", id, f.Name)
		}
	}

	body := decode(t, do(h, "http://localhost/api/v1/pages/8/"))
	speakers := body["speakers"].([]any)
	require.Len(t, speakers, 2)
	assert.Nil(t, speakers[1].(map[string]any)["image"])

	body = decode(t, do(h, "http://localhost/api/v1/pages/6/"))
	assert.Equal(t, "about-us", body["slug"])
	assert.Equal(t, float64(2), body["meta"].(map[string]any)["parent_id"])
}

func TestPageDetail_NotFound(t *testing.T) {
	h := newTestHandler(t)

	for _, id := range []string{"9", "7", "13", "3", "1", "1000"} {
		assertError(t, do(h, "http://localhost/api/v1/pages/"+id+"/"), http.StatusNotFound, "No Page matches the given query.")
	}

	w := do(h, "http://other.example.com/api/v1/pages/3/")
	assert.Equal(t, http.StatusOK, w.Code)

	assertError(t, do(h, "http://localhost/api/v1/pages/abc/"), http.StatusNotFound, "Not found.")
}

func TestImageListing(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, listing("images", nil)))
	assert.Equal(t, 12, totalCount(t, body))
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, idList(t, body, "images"))
	assert.NotContains(t, body["images"].([]any)[0], "meta")

	body = decode(t, do(h, listing("images", map[string]string{"order": "title"})))
	assert.Equal(t, []int{6, 15, 13, 5, 10, 12, 11, 7, 8, 14, 4, 9}, idList(t, body, "images"))

	body = decode(t, do(h, listing("images", map[string]string{"order": "width"})))
	assert.Equal(t, []int{15, 10, 14, 4, 6, 9, 8, 5, 13, 12, 7, 11}, idList(t, body, "images"))
	body = decode(t, do(h, listing("images", map[string]string{"order": "-width"})))
	assert.Equal(t, []int{11, 7, 12, 13, 5, 8, 9, 6, 4, 14, 10, 15}, idList(t, body, "images"))

	body = decode(t, do(h, listing("images", map[string]string{"tags": "wagtail"})))
	assert.Equal(t, []int{4, 5}, idList(t, body, "images"))
	body = decode(t, do(h, listing("images", map[string]string{"tags": "wagtail,bird"})))
	assert.Equal(t, []int{5}, idList(t, body, "images"))

	body = decode(t, do(h, listing("images", map[string]string{"fields": "title,width,height"})))
	first := body["images"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"id": float64(4), "title": "Wagtail logo", "width": float64(512), "height": float64(512)}, first)

	body = decode(t, do(h, listing("images", map[string]string{"search": "bird"})))
	assert.ElementsMatch(t, []int{5}, idList(t, body, "images"))

	assertError(t, do(h, listing("images", map[string]string{"type": "tests.BlogEntryPage"})),
		http.StatusBadRequest, "query parameter is not an operation or a recognised field: type")
	assertError(t, do(h, listing("images", map[string]string{"child_of": "2"})),
		http.StatusBadRequest, "query parameter is not an operation or a recognised field: child_of")
	assertError(t, do(h, listing("images", map[string]string{"limit": "abc"})),
		http.StatusBadRequest, "limit must be a positive integer")
	assertError(t, do(h, listing("images", map[string]string{"offset": "abc"})),
		http.StatusBadRequest, "offset must be a positive integer")
}

func TestImageDetail(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, "http://localhost/api/v1/images/5/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id": 5,
		"title": "Bird in flight",
		"tags": ["bird", "wagtail"],
		"width": 1024,
		"height": 768
	}`, w.Body.String())

	w = do(h, "http://localhost/api/v1/images/6/")
	assert.Equal(t, []any{}, decode(t, w)["tags"])

	assertError(t, do(h, "http://localhost/api/v1/images/100/"), http.StatusNotFound, "No Image matches the given query.")
}

func TestDocumentListing(t *testing.T) {
	h := newTestHandler(t)

	w := do(h, listing("documents", map[string]string{"title": "James Joyce"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents": [{"id": 2, "title": "James Joyce"}], "meta": {"total_count": 1}}`, w.Body.String())

	body := decode(t, do(h, listing("documents", map[string]string{"order": "title"})))
	assert.Equal(t, []int{3, 12, 10, 2, 7, 9, 8, 4, 5, 11, 1, 6}, idList(t, body, "documents"))

	body = decode(t, do(h, listing("documents", map[string]string{"search": "james"})))
	assert.Equal(t, []int{2}, idList(t, body, "documents"))

	body = decode(t, do(h, listing("documents", map[string]string{"tags": "wagtail"})))
	assert.Equal(t, []int{1, 4}, idList(t, body, "documents"))

	assertError(t, do(h, listing("documents", map[string]string{"order": "not_a_field"})),
		http.StatusBadRequest, "cannot order by 'not_a_field' (unknown field)")
}

func TestDocumentListing_ComputedField(t *testing.T) {
	h := newTestHandler(t, func(o *Options) {
		require.NoError(t, o.Registry.DefineFields(content.KindDocument, content.TypeDef{Fields: []string{"filename"}}))
	})

	w := do(h, listing("documents", map[string]string{"filename": "no-such-file.pdf"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents": [], "meta": {"total_count": 0}}`, w.Body.String())

	body := decode(t, do(h, listing("documents", map[string]string{"filename": "james_joyce.pdf", "fields": "filename"})))
	assert.Equal(t, 1, totalCount(t, body))
	assert.Equal(t, []any{map[string]any{"id": float64(2), "filename": "james_joyce.pdf"}}, body["documents"])

	body = decode(t, do(h, listing("documents", map[string]string{"order": "filename"})))
	assert.Equal(t, []int{3, 12, 2, 7, 9, 8, 4, 10, 5, 11, 1, 6}, idList(t, body, "documents"))

	body = decode(t, do(h, listing("documents", map[string]string{"order": "-filename", "limit": "3", "offset": "1"})))
	assert.Equal(t, []int{1, 11, 5}, idList(t, body, "documents"))
	assert.Equal(t, 12, totalCount(t, body))
}

func TestDocumentDetail_DownloadURL(t *testing.T) {
	h := newTestHandler(t)

	body := decode(t, do(h, "http://localhost/api/v1/documents/1/"))
	assert.Equal(t, map[string]any{"download_url": "http://localhost/documents/1/wagtail_by_markharkin.pdf"}, body["meta"])
	assert.Equal(t, "Wagtail by Mark Harkin", body["title"])

	configured := newTestHandler(t, func(o *Options) { o.Config.BaseURL = "http://api.example.com/some/path/" })
	body = decode(t, do(configured, "http://localhost/api/v1/documents/1/"))
	assert.Equal(t, "http://api.example.com/documents/1/wagtail_by_markharkin.pdf",
		body["meta"].(map[string]any)["download_url"])

	assertError(t, do(h, "http://localhost/api/v1/documents/13/"), http.StatusNotFound, "No Document matches the given query.")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://localhost/api/v1/pages/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// failingStore answers lookups but fails every query
type failingStore struct {
	*memory.Store
}

var errStoreDown = errors.New("store down")

func (failingStore) Count(context.Context, query.Spec) (int, error) {
	return 0, errStoreDown
}

func TestStoreFailureRendersInternalError(t *testing.T) {
	reg, store := seededStore(t)
	core, logs := observer.New(zapcore.ErrorLevel)

	h := mount(t, Options{
		Registry: reg,
		Store:    failingStore{store},
		Config:   DefaultConfig(),
		Logger:   zap.New(core),
	})

	assertError(t, do(h, listing("images", nil)), http.StatusInternalServerError, "internal server error")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request failed", entry.Message)
	assert.Equal(t, "images", entry.ContextMap()["collection"])
	assert.Contains(t, entry.ContextMap()["error"], "store down")
}

// brokenWriter accepts headers but fails every body write
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestResponseWriteFailureLogged(t *testing.T) {
	reg, store := seededStore(t)
	core, logs := observer.New(zapcore.DebugLevel)

	h := mount(t, Options{
		Registry: reg,
		Store:    store,
		Config:   DefaultConfig(),
		Logger:   zap.New(core),
	})

	w := brokenWriter{httptest.NewRecorder()}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, listing("images", nil), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	failures := logs.FilterMessage("response write failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.DebugLevel, failures[0].Level)
	assert.Equal(t, "images", failures[0].ContextMap()["collection"])
	assert.Equal(t, "connection reset", failures[0].ContextMap()["error"])
}

func TestNewValidatesOptions(t *testing.T) {
	reg, store := seededStore(t)

	_, err := New(Options{Store: store})
	assert.Error(t, err)
	_, err = New(Options{Registry: reg})
	assert.Error(t, err)
	_, err = New(Options{Registry: reg, Store: store, Config: Config{LimitMax: -1}})
	assert.Error(t, err)

	a, err := New(Options{Registry: reg, Store: store, Config: DefaultConfig()})
	require.NoError(t, err)
	require.Len(t, a.Endpoints(), 3)
	assert.Equal(t, content.KindDocument, a.Endpoints()[2].Kind())
}
