// Package pgstore is a geolink.Store on PostgreSQL.
package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/geolinks/internal/errx"
	"github.com/sundayezeilo/geolinks/internal/geolink"
)

// DBTX is the subset of *pgxpool.Pool, *pgx.Conn and pgx.Tx the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	upsertSQL = `
INSERT INTO geolinks (link, lat, lng, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (link) DO UPDATE
SET lat = EXCLUDED.lat,
    lng = EXCLUDED.lng,
    description = EXCLUDED.description,
    revision = geolinks.revision + 1,
    updated_at = now()
RETURNING revision`

	fetchAllSQL   = `SELECT link, lat, lng, description FROM geolinks ORDER BY link`
	fetchByKeySQL = `SELECT link, lat, lng, description FROM geolinks WHERE link = $1`
	deleteSQL     = `DELETE FROM geolinks WHERE link = $1`
)

type Store struct {
	db DBTX
}

var _ geolink.Store = (*Store)(nil)

// New returns a store over db. Call EnsureSchema first on a fresh database.
func New(db DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(ctx context.Context, rec geolink.Record) (geolink.UpsertStatus, error) {
	const op = "pgstore.Upsert"

	if err := rec.Validate(); err != nil {
		return 0, errx.E(op, errx.Invalid, err)
	}

	var revision int64
	err := s.db.QueryRow(ctx, upsertSQL,
		rec.Link, rec.Location.Lat, rec.Location.Lng, rec.Description,
	).Scan(&revision)
	if err != nil {
		return 0, mapRepoError(op, err)
	}

	if revision == 1 {
		return geolink.Created, nil
	}
	return geolink.Updated, nil
}

func (s *Store) FetchAll(ctx context.Context) ([]geolink.Record, error) {
	const op = "pgstore.FetchAll"

	rows, err := s.db.Query(ctx, fetchAllSQL)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (geolink.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	if recs == nil {
		recs = []geolink.Record{}
	}
	return recs, nil
}

func (s *Store) FetchByKey(ctx context.Context, link string) (geolink.Record, error) {
	const op = "pgstore.FetchByKey"

	rec, err := scanRecord(s.db.QueryRow(ctx, fetchByKeySQL, link))
	if err != nil {
		return geolink.Record{}, mapRepoError(op, err)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, link string) error {
	const op = "pgstore.Delete"

	tag, err := s.db.Exec(ctx, deleteSQL, link)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, geolink.ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (geolink.Record, error) {
	var rec geolink.Record
	err := row.Scan(&rec.Link, &rec.Location.Lat, &rec.Location.Lng, &rec.Description)
	return rec, err
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, geolink.ErrNotFound)

	case isCheckViolation(err):
		return errx.E(op, errx.Invalid, errors.Join(geolink.ErrInvalidRecord, err))

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23514"
}
