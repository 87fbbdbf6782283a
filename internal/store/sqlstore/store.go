// Package sqlstore serves content from a SQL database. SQLite (mattn/go-sqlite3)
// and PostgreSQL (pgx or lib/pq) are supported with a single schema; candidate
// set specs are translated to SQL by the builder in this package.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/query"
)

// Dialect selects the placeholder style and the few statements that differ
// between SQLite and PostgreSQL
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// String returns the dialect name
func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor maps a database/sql driver name to its dialect
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Store implements query.Source and api.Store over a database
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to the database and verifies the connection
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	// Every connection to ":memory:" is a separate database.
	if dialect == SQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return New(db, dialect, logger), nil
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Count implements query.Source
func (s *Store) Count(ctx context.Context, spec query.Spec) (int, error) {
	stored, computed := spec.Split()
	if len(computed) > 0 {
		objs, err := s.fetchComputed(ctx, stored, computed)
		if err != nil {
			return 0, err
		}
		return len(objs), nil
	}

	b := newBuilder(s.dialect, spec.Kind)
	stmt := b.count(spec)

	var n int
	if err := s.db.QueryRowContext(ctx, stmt, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", spec.Kind.Collection(), err)
	}
	return n, nil
}

// Fetch implements query.Source. Ranked specs are ordered in Go once the
// matching rows are loaded, everything else is ordered and sliced by the
// database.
func (s *Store) Fetch(ctx context.Context, spec query.Spec) ([]content.Object, error) {
	if spec.Computed() {
		stored, computed := spec.Split()
		objs, err := s.fetchComputed(ctx, stored, computed)
		if err != nil {
			return nil, err
		}
		if len(stored.Order) != len(spec.Order) {
			query.SortObjects(objs, spec.Order)
		}
		return window(objs, spec.Offset, spec.Limit), nil
	}

	ranked := spec.Rank != nil && !spec.Random && len(spec.Order) == 0

	selectSpec := spec
	if ranked {
		selectSpec.Offset, selectSpec.Limit = 0, -1
	}

	b := newBuilder(s.dialect, spec.Kind)
	stmt := b.fetch(selectSpec)
	s.logger.Debug("fetch", zap.String("sql", stmt), zap.Int("args", len(b.args)))

	rows, err := s.db.QueryContext(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", spec.Kind.Collection(), err)
	}
	defer rows.Close()

	objs, err := scanObjects(rows, spec.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", spec.Kind.Collection(), err)
	}

	if ranked {
		rank(objs, *spec.Rank)
		objs = window(objs, spec.Offset, spec.Limit)
	}
	return objs, nil
}

// fetchComputed loads the rows matching the stored part of a spec and keeps
// those satisfying every computed condition
func (s *Store) fetchComputed(ctx context.Context, stored query.Spec, computed []query.Condition) ([]content.Object, error) {
	objs, err := s.Fetch(ctx, stored)
	if err != nil {
		return nil, err
	}
	kept := objs[:0]
	for _, obj := range objs {
		ok := true
		for _, c := range computed {
			if !c.EvalComputed(obj) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, obj)
		}
	}
	return kept, nil
}

// Page returns any stored page, live or not
func (s *Store) Page(ctx context.Context, id int) (*content.Page, error) {
	stmt := fmt.Sprintf("SELECT %s FROM pages o WHERE o.id = %s", pageColumns, s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query page %d: %w", id, err)
	}
	defer rows.Close()

	objs, err := scanObjects(rows, content.KindPage)
	if err != nil {
		return nil, fmt.Errorf("failed to scan page %d: %w", id, err)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("page %d: %w", id, content.ErrNotFound)
	}
	return objs[0].(*content.Page), nil
}

// Sites returns every configured site
func (s *Store) Sites(ctx context.Context) ([]*content.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hostname, port, root_page_id, is_default FROM sites ORDER BY hostname, port")
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []*content.Site
	for rows.Next() {
		var (
			site      content.Site
			isDefault int
		)
		if err := rows.Scan(&site.Hostname, &site.Port, &site.RootPageID, &isDefault); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		site.IsDefault = isDefault != 0
		sites = append(sites, &site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sites: %w", err)
	}
	return sites, nil
}

// rollback ends tx unless it was committed
func (s *Store) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("failed to rollback transaction", zap.Error(err))
	}
}
