// Package sqlitestore is a geolink.Store on an embedded SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sundayezeilo/geolinks/internal/errx"
	"github.com/sundayezeilo/geolinks/internal/geolink"
)

const DefaultPath = "geolinks.db"

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS geolinks (
    link        TEXT PRIMARY KEY,
    lat         REAL NOT NULL CHECK (lat BETWEEN -90 AND 90),
    lng         REAL NOT NULL CHECK (lng BETWEEN -180 AND 180),
    description TEXT,
    revision    INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	upsertSQL = `
INSERT INTO geolinks (link, lat, lng, description)
VALUES (?, ?, ?, ?)
ON CONFLICT (link) DO UPDATE
SET lat = excluded.lat,
    lng = excluded.lng,
    description = excluded.description,
    revision = geolinks.revision + 1,
    updated_at = CURRENT_TIMESTAMP
RETURNING revision`

	fetchAllSQL   = `SELECT link, lat, lng, description FROM geolinks ORDER BY link`
	fetchByKeySQL = `SELECT link, lat, lng, description FROM geolinks WHERE link = ?`
	deleteSQL     = `DELETE FROM geolinks WHERE link = ?`
)

// Open opens the SQLite database at path using the modernc.org/sqlite
// driver. The pool is capped at one connection: SQLite serializes writers
// anyway, and ":memory:" databases are per connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify sqlite connection to %q: %w", path, err)
	}
	return db, nil
}

type Store struct {
	db *sql.DB
}

var _ geolink.Store = (*Store)(nil)

// New returns a store over db and creates the schema if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errx.E("sqlitestore.New", errx.Invalid, errors.New("db is nil"))
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, errx.E("sqlitestore.New", errx.Unavailable, fmt.Errorf("ensure schema: %w", err))
	}
	return &Store{db: db}, nil
}

func (s *Store) Upsert(ctx context.Context, rec geolink.Record) (geolink.UpsertStatus, error) {
	const op = "sqlitestore.Upsert"

	if err := rec.Validate(); err != nil {
		return 0, errx.E(op, errx.Invalid, err)
	}

	var revision int64
	err := s.db.QueryRowContext(ctx, upsertSQL,
		rec.Link, rec.Location.Lat, rec.Location.Lng, nullString(rec.Description),
	).Scan(&revision)
	if err != nil {
		return 0, mapError(op, err)
	}

	if revision == 1 {
		return geolink.Created, nil
	}
	return geolink.Updated, nil
}

func (s *Store) FetchAll(ctx context.Context) ([]geolink.Record, error) {
	const op = "sqlitestore.FetchAll"

	rows, err := s.db.QueryContext(ctx, fetchAllSQL)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	recs := []geolink.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return recs, nil
}

func (s *Store) FetchByKey(ctx context.Context, link string) (geolink.Record, error) {
	const op = "sqlitestore.FetchByKey"

	rec, err := scanRecord(s.db.QueryRowContext(ctx, fetchByKeySQL, link))
	if err != nil {
		return geolink.Record{}, mapError(op, err)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, link string) error {
	const op = "sqlitestore.Delete"

	res, err := s.db.ExecContext(ctx, deleteSQL, link)
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, geolink.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (geolink.Record, error) {
	var (
		rec  geolink.Record
		desc sql.NullString
	)
	if err := row.Scan(&rec.Link, &rec.Location.Lat, &rec.Location.Lng, &desc); err != nil {
		return geolink.Record{}, err
	}
	if desc.Valid {
		rec.Description = &desc.String
	}
	return rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errx.E(op, errx.NotFound, geolink.ErrNotFound)

	case isCheckViolation(err):
		return errx.E(op, errx.Invalid, errors.Join(geolink.ErrInvalidRecord, err))

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func isCheckViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// extended result codes off
		return strings.Contains(se.Error(), "CHECK constraint")
	}
	return false
}
