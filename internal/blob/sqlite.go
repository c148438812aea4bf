package blob

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite keeps blobs as rows of a single table.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RunMigrations brings the blob schema of dbPath up to date.
func RunMigrations(dbPath string) error {
	// separate connection so the migrator can close it freely
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Driver() Driver { return DriverSQLite }

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const upsertBlob = `
INSERT INTO blobs (key, content_type, data, size, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    content_type = excluded.content_type,
    data         = excluded.data,
    size         = excluded.size,
    updated_at   = excluded.updated_at`

func (s *SQLite) Put(ctx context.Context, key string, data []byte, contentType string) (Info, error) {
	if key == "" {
		return Info{}, fmt.Errorf("empty key")
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, upsertBlob, key, contentType, data, len(data), now.Format(time.RFC3339Nano)); err != nil {
		return Info{}, fmt.Errorf("put blob %s: %w", key, err)
	}
	return Info{Key: key, Size: int64(len(data)), ContentType: contentType, LastModified: now}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (Info, []byte, error) {
	var (
		info    = Info{Key: key}
		data    []byte
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, data, size, updated_at FROM blobs WHERE key = ?`, key,
	).Scan(&info.ContentType, &data, &info.Size, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Info{}, nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		info.LastModified = t
	}
	return info, data, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete blob %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
