package marker

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Twomem/avacta-alert/internal/alert"
	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

//go:embed schema/*.sql
var schemaDir embed.FS

var _ alert.MarkerStore = (*SQLiteStore)(nil)

// SQLiteStore keeps one marker row per feed url.
type SQLiteStore struct {
	db      *sqlx.DB
	feedURL string
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path, feedURL string) (*SQLiteStore, error) {
	dbx, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, alerterrs.E(alerterrs.KindStore, fmt.Errorf("error opening database: %w", err))
	}

	// Migrate, always
	if err := migrateDB(ctx, dbx); err != nil {
		dbx.Close()
		return nil, alerterrs.E(alerterrs.KindStore, err)
	}

	return NewSQLiteStore(dbx, feedURL), nil
}

// migrateDB applies the embedded schema. Already being current is fine.
func migrateDB(ctx context.Context, dbx *sqlx.DB) error {
	src, err := iofs.New(schemaDir, "schema")
	if err != nil {
		return fmt.Errorf("error reading embedded schema: %w", err)
	}
	drv, err := migratesqlite.WithInstance(dbx.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("error preparing marker database: %w", err)
	}
	migrator, err := migrate.NewWithInstance("schema", src, "markers", drv)
	if err != nil {
		return fmt.Errorf("error creating schema migrator: %w", err)
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		slog.DebugContext(ctx, "marker schema already current")
	case err != nil:
		return fmt.Errorf("error applying marker schema: %w", err)
	default:
		version, _, _ := migrator.Version()
		slog.InfoContext(ctx, "marker schema migrated", "version", version)
	}

	return nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(dbx *sqlx.DB, feedURL string) *SQLiteStore {
	return &SQLiteStore{db: dbx, feedURL: feedURL}
}

func (s *SQLiteStore) LastSeen(ctx context.Context) (string, error) {
	const q = `SELECT link FROM markers WHERE feed_url = ?;`

	var link string
	err := s.db.GetContext(ctx, &link, q, s.feedURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", alerterrs.E(alerterrs.KindStore, fmt.Errorf("error fetching marker: %s", err))
	}

	return link, nil
}

func (s *SQLiteStore) SetLastSeen(ctx context.Context, link string) error {
	query, args, err := sq.Insert("markers").
		Columns("feed_url", "link", "updated_at").
		Values(s.feedURL, link, time.Now().UTC()).
		Suffix("ON CONFLICT(feed_url) DO UPDATE SET link = excluded.link, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return alerterrs.E(alerterrs.KindStore, fmt.Errorf("error constructing sql: %s", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return alerterrs.E(alerterrs.KindStore, fmt.Errorf("error writing marker: %s", err))
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
