// Package cache is the local cache of publisher sources, backed by SQLite.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newsdesk/internal/live"
	"newsdesk/internal/model"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const lastRefreshKey = "sources_refreshed_at"

type Cache struct {
	db  *sql.DB
	all *live.Value[[]model.Source]
}

// Open opens (creating if needed) the cache database at dbPath and brings
// its schema up to date.
func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	if err := migrateUp(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, all: live.New[[]model.Source]()}
	if err := c.publish(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// migrateUp runs on its own connection: the sqlite migrate driver closes
// the handle it was given.
func migrateUp(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening cache db for migration: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("loading migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// BulkInsert stores sources. A source whose ID already exists, in the table
// or earlier in the same batch, is skipped: the first write wins and no
// error is reported.
func (c *Cache) BulkInsert(ctx context.Context, sources []model.Source) error {
	if len(sources) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sources (id, name, description, url, category, language, country)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var inserted int64
	for _, s := range sources {
		res, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Description, s.URL, s.Category.String(), s.Language, s.Country)
		if err != nil {
			return fmt.Errorf("inserting source %s: %w", s.ID, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if inserted > 0 {
		return c.publish(ctx)
	}
	return nil
}

// AllSources returns a live handle on the whole table. It emits a fresh
// snapshot after every insert that added rows.
func (c *Cache) AllSources() *live.Value[[]model.Source] {
	return c.all
}

// Sources runs a filtered query against the table.
func (c *Cache) Sources(ctx context.Context, spec model.Specification) ([]model.Source, error) {
	var (
		where []string
		args  []interface{}
	)
	if spec.Category != model.CategoryNone {
		where = append(where, "category = ?")
		args = append(args, spec.Category.String())
	}
	if spec.Language != "" {
		where = append(where, "language = ? COLLATE NOCASE")
		args = append(args, spec.Language)
	}
	if spec.Country != "" {
		where = append(where, "country = ? COLLATE NOCASE")
		args = append(args, spec.Country)
	}

	query := "SELECT id, name, description, url, category, language, country FROM sources"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	return c.query(ctx, query, args...)
}

func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&n)
	return n, err
}

func (c *Cache) NeedsRefresh(ctx context.Context, interval time.Duration) bool {
	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", lastRefreshKey).Scan(&value)
	if err != nil {
		return true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return true
	}
	return time.Since(t) > interval
}

func (c *Cache) SetLastRefresh(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, lastRefreshKey, time.Now().Format(time.RFC3339))
	return err
}

func (c *Cache) publish(ctx context.Context) error {
	all, err := c.query(ctx, "SELECT id, name, description, url, category, language, country FROM sources ORDER BY rowid")
	if err != nil {
		return err
	}
	c.all.Set(all)
	return nil
}

func (c *Cache) query(ctx context.Context, query string, args ...interface{}) ([]model.Source, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	sources := make([]model.Source, 0)
	for rows.Next() {
		var (
			s   model.Source
			cat string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.URL, &cat, &s.Language, &s.Country); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		if cat != "" {
			// rows written by an older build may carry a category we no longer know
			if parsed, err := model.ParseCategory(cat); err == nil {
				s.Category = parsed
			}
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
