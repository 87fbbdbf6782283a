package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
	"github.com/conduit-lang/contentapi/internal/store/fixtures"
	"github.com/conduit-lang/contentapi/internal/store/memory"
)

const testSite = "../fixtures/testdata/site.yaml"

func openTestStore(t *testing.T) (*Store, *fixtures.Dataset) {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, "sqlite3", ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))

	ds, err := fixtures.Load(testSite)
	require.NoError(t, err)
	_, err = s.Import(ctx, ds)
	require.NoError(t, err)
	return s, ds
}

func ids(objs []content.Object) []int {
	out := make([]int, len(objs))
	for i, o := range objs {
		out[i] = o.ObjectID()
	}
	return out
}

func TestDialectFor(t *testing.T) {
	for driver, want := range map[string]Dialect{"sqlite3": SQLite, "pgx": Postgres, "postgres": Postgres} {
		got, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got, driver)
	}

	_, err := DialectFor("mysql")
	assert.Error(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestBuilder_Postgres(t *testing.T) {
	b := newBuilder(Postgres, content.KindPage)
	stmt := b.count(query.Spec{
		Kind:       content.KindPage,
		Conditions: []query.Condition{query.Live(), query.ChildOf(5), query.Equal("audience", "public")},
		Limit:      -1,
	})

	assert.Equal(t,
		"SELECT COUNT(*) FROM pages o WHERE o.live = 1 AND o.parent_id = $1 AND "+
			"EXISTS (SELECT 1 FROM field_values fv WHERE fv.kind = $2 AND fv.object_id = o.id AND fv.name = $3 AND fv.text_value = $4)",
		stmt)
	assert.Equal(t, []interface{}{5, "page", "audience", "public"}, b.args)
}

func TestBuilder_Slicing(t *testing.T) {
	b := newBuilder(Postgres, content.KindImage)
	stmt := b.fetch(query.Spec{Kind: content.KindImage, Limit: 10})
	assert.Equal(t, "SELECT "+imageColumns+" FROM images o ORDER BY o.id LIMIT $1", stmt)
	assert.Equal(t, []interface{}{10}, b.args)

	b = newBuilder(SQLite, content.KindDocument)
	stmt = b.fetch(query.Spec{Kind: content.KindDocument, Offset: 3, Limit: -1})
	assert.Equal(t, "SELECT "+documentColumns+" FROM documents o ORDER BY o.id LIMIT -1 OFFSET ?", stmt)
	assert.Equal(t, []interface{}{3}, b.args)

	b = newBuilder(Postgres, content.KindDocument)
	stmt = b.fetch(query.Spec{Kind: content.KindDocument, Offset: 3, Limit: -1})
	assert.Equal(t, "SELECT "+documentColumns+" FROM documents o ORDER BY o.id OFFSET $1", stmt)
}

func TestBuilder_EscapesLikePatterns(t *testing.T) {
	b := newBuilder(SQLite, content.KindDocument)
	b.condition(query.Matches(query.Match{Terms: []string{"50%_off"}, Fields: []string{"title"}}))
	assert.Equal(t, []interface{}{`%50\%\_off%`}, b.args)
}

// The SQL store must agree with the memory store on every spec the API builds.
func TestStore_MatchesMemoryStore(t *testing.T) {
	s, ds := openTestStore(t)
	mem := memory.New()
	ds.Seed(mem)
	ctx := context.Background()

	scoped := []query.Condition{query.Live(), query.Public(), query.DescendantOf(2, true)}
	with := func(conds ...query.Condition) []query.Condition {
		return append(append([]query.Condition(nil), scoped...), conds...)
	}
	blogSearch := query.Match{Terms: []string{"wagtail"}, Fields: []string{"title", "body"}}
	filename := func(obj content.Object) any { return obj.(*content.Document).Filename() }

	tests := []struct {
		name string
		spec query.Spec
	}{
		{"natural pages", query.Spec{Kind: content.KindPage, Conditions: scoped, Limit: -1}},
		{"all pages", query.Spec{Kind: content.KindPage, Limit: -1}},
		{"type", query.Spec{Kind: content.KindPage, Conditions: with(query.OfType("tests.eventpage")), Limit: -1}},
		{"child of", query.Spec{Kind: content.KindPage, Conditions: with(query.ChildOf(5)), Limit: -1}},
		{"descendant exclusive", query.Spec{Kind: content.KindPage, Conditions: []query.Condition{query.DescendantOf(4, false)}, Limit: -1}},
		{"plain equality", query.Spec{Kind: content.KindPage, Conditions: with(query.Equal("audience", "public")), Limit: -1}},
		{"structural equality", query.Spec{Kind: content.KindPage, Conditions: with(query.Equal("slug", "home-page")), Limit: -1}},
		{"tags", query.Spec{Kind: content.KindPage, Conditions: with(query.HasTags([]string{"wagtail", "bird"})), Limit: -1}},
		{"title order", query.Spec{Kind: content.KindPage, Conditions: scoped, Order: []query.OrderTerm{{Field: "title"}}, Limit: -1}},
		{"reverse title order", query.Spec{Kind: content.KindPage, Conditions: scoped, Order: []query.OrderTerm{{Field: "title", Desc: true}}, Limit: -1}},
		{"plain field order", query.Spec{Kind: content.KindPage, Conditions: scoped, Order: []query.OrderTerm{{Field: "date_from"}}, Limit: -1}},
		{"reverse plain field order", query.Spec{Kind: content.KindPage, Conditions: scoped, Order: []query.OrderTerm{{Field: "date_from", Desc: true}}, Limit: -1}},
		{"search", query.Spec{Kind: content.KindPage, Conditions: with(query.Matches(blogSearch)), Limit: -1}},
		{"ranked search", query.Spec{Kind: content.KindPage, Conditions: with(query.Matches(blogSearch)), Rank: &blogSearch, Limit: -1}},
		{"ranked window", query.Spec{Kind: content.KindPage, Conditions: with(query.Matches(blogSearch)), Rank: &blogSearch, Offset: 1, Limit: 1}},
		{"window", query.Spec{Kind: content.KindPage, Conditions: scoped, Offset: 2, Limit: 3}},
		{"offset past end", query.Spec{Kind: content.KindPage, Conditions: scoped, Offset: 100, Limit: 5}},
		{"images by width", query.Spec{Kind: content.KindImage, Order: []query.OrderTerm{{Field: "width"}}, Limit: -1}},
		{"images by height desc", query.Spec{Kind: content.KindImage, Order: []query.OrderTerm{{Field: "height", Desc: true}}, Limit: 5}},
		{"image tags", query.Spec{Kind: content.KindImage, Conditions: []query.Condition{query.HasTags([]string{"bird"})}, Limit: -1}},
		{"image width equality", query.Spec{Kind: content.KindImage, Conditions: []query.Condition{query.Equal("width", "640")}, Limit: -1}},
		{"documents by title", query.Spec{Kind: content.KindDocument, Order: []query.OrderTerm{{Field: "title"}}, Limit: -1}},
		{"document search", query.Spec{Kind: content.KindDocument, Conditions: []query.Condition{
			query.Matches(query.Match{Terms: []string{"notes"}, Fields: []string{"title"}}),
		}, Limit: -1}},
		{"computed equality", query.Spec{Kind: content.KindDocument, Conditions: []query.Condition{
			query.EqualComputed("filename", "menu.pdf", filename),
		}, Limit: -1}},
		{"computed equality with stored filters", query.Spec{Kind: content.KindDocument, Conditions: []query.Condition{
			query.HasTags([]string{"wagtail"}), query.EqualComputed("filename", "release_notes.txt", filename),
		}, Order: []query.OrderTerm{{Field: "title"}}, Limit: -1}},
		{"computed order window", query.Spec{Kind: content.KindDocument,
			Order: []query.OrderTerm{{Field: "filename", Desc: true, Get: filename}}, Offset: 2, Limit: 4}},
		{"page operator on documents", query.Spec{Kind: content.KindDocument, Conditions: []query.Condition{query.ChildOf(1)}, Limit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := mem.Fetch(ctx, tt.spec)
			require.NoError(t, err)
			got, err := s.Fetch(ctx, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, ids(want), ids(got))

			wantN, err := mem.Count(ctx, tt.spec)
			require.NoError(t, err)
			gotN, err := s.Count(ctx, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, wantN, gotN)
		})
	}
}

func TestStore_Random(t *testing.T) {
	s, _ := openTestStore(t)

	objs, err := s.Fetch(context.Background(), query.Spec{Kind: content.KindImage, Random: true, Limit: -1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, ids(objs))
}

func TestStore_Page(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	p, err := s.Page(ctx, 16)
	require.NoError(t, err)
	assert.Equal(t, "tests.BlogEntryPage", p.Type)
	assert.Equal(t, "Blog post", p.Title)
	assert.Equal(t, 5, p.ParentID)
	assert.True(t, p.Live)
	assert.Equal(t, []string{"wagtail", "bird"}, p.Tags)
	assert.Equal(t, "2013-12-02", p.Fields["date"])
	require.Len(t, p.Children["related_links"], 2)
	assert.Equal(t, "Django", p.Children["related_links"][1].Fields["title"])

	draft, err := s.Page(ctx, 9)
	require.NoError(t, err)
	assert.False(t, draft.Live)

	secret, err := s.Page(ctx, 7)
	require.NoError(t, err)
	assert.True(t, secret.Restricted)

	_, err = s.Page(ctx, 1000)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestStore_Sites(t *testing.T) {
	s, _ := openTestStore(t)

	sites, err := s.Sites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, content.Site{Hostname: "localhost", Port: 80, RootPageID: 2, IsDefault: true}, *sites[0])
	assert.Equal(t, "other.example.com", sites[1].Hostname)
	assert.False(t, sites[1].IsDefault)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, len(Migrations), n)
}

func TestStore_MigrationStatus(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite3", ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	states, err := s.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, states, len(Migrations))
	for _, st := range states {
		assert.False(t, st.Applied, st.Name)
	}

	require.NoError(t, s.Migrate(ctx))
	states, err = s.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), states[0].Version)
	for _, st := range states {
		assert.True(t, st.Applied, st.Name)
	}
}

func TestStore_ImportReplaces(t *testing.T) {
	s, ds := openTestStore(t)
	ctx := context.Background()

	stats, err := s.Import(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Sites: 2, Pages: len(ds.Pages), Images: 12, Documents: 12}, stats)

	n, err := s.Count(ctx, query.Spec{Kind: content.KindImage, Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestStore_CountError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM images o`).WillReturnError(errors.New("connection reset"))

	s := New(db, SQLite, nil)
	_, err = s.Count(context.Background(), query.Spec{Kind: content.KindImage, Limit: -1})
	assert.ErrorContains(t, err, "failed to count images")
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FetchScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title", "file", "fields", "tags"}).
		AddRow(1, "Broken", "broken.pdf", "{not json", "[]")
	mock.ExpectQuery(`SELECT .* FROM documents o ORDER BY o.id`).WillReturnRows(rows)

	s := New(db, SQLite, nil)
	_, err = s.Fetch(context.Background(), query.Spec{Kind: content.KindDocument, Limit: -1})
	assert.ErrorContains(t, err, "document 1: invalid fields")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ImportRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM field_values").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := New(db, Postgres, nil)
	_, err = s.Import(context.Background(), &fixtures.Dataset{})
	assert.ErrorContains(t, err, "failed to clear field_values")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PageUsesDialectPlaceholder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM pages o WHERE o.id = \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s := New(db, Postgres, nil)
	_, err = s.Page(context.Background(), 3)
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
