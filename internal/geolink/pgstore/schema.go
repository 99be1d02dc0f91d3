package pgstore

import (
	"context"

	"github.com/sundayezeilo/geolinks/internal/errx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS geolinks (
    link        TEXT PRIMARY KEY,
    lat         DOUBLE PRECISION NOT NULL CHECK (lat BETWEEN -90 AND 90),
    lng         DOUBLE PRECISION NOT NULL CHECK (lng BETWEEN -180 AND 180),
    description TEXT,
    revision    BIGINT NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the geolinks table if it does not exist.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return errx.E("pgstore.EnsureSchema", errx.Unavailable, err)
	}
	return nil
}
