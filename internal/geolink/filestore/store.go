// Package filestore keeps link records in a single JSON file, the format the
// service has always exported: an array of {link, location:{lat,lng},
// description?}.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sundayezeilo/geolinks/internal/errx"
	"github.com/sundayezeilo/geolinks/internal/geolink"
)

const DefaultPath = "links_and_locations.json"

type fileLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type fileRecord struct {
	Link        string        `json:"link"`
	Location    *fileLocation `json:"location"`
	Description *string       `json:"description,omitempty"`
}

// Store is a geolink.Store over a JSON file. Every call rereads the file, so
// edits made by other tools between requests are picked up. Writes within one
// process are serialized and land through an atomic rename.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ geolink.Store = (*Store)(nil)

// New returns a store backed by path. The file is created on first write.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errx.E("filestore.New", errx.Invalid, errors.New("path cannot be empty"))
	}
	return &Store{path: path}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) Upsert(ctx context.Context, rec geolink.Record) (geolink.UpsertStatus, error) {
	const op = "filestore.Upsert"

	if err := rec.Validate(); err != nil {
		return 0, errx.E(op, errx.Invalid, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}

	status := geolink.Created
	if i := indexOf(recs, rec.Link); i >= 0 {
		recs[i] = rec
		status = geolink.Updated
	} else {
		recs = append(recs, rec)
	}

	if err := s.save(recs); err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return status, nil
}

func (s *Store) FetchAll(ctx context.Context) ([]geolink.Record, error) {
	const op = "filestore.FetchAll"

	if err := ctx.Err(); err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	return recs, nil
}

func (s *Store) FetchByKey(ctx context.Context, link string) (geolink.Record, error) {
	const op = "filestore.FetchByKey"

	recs, err := s.FetchAll(ctx)
	if err != nil {
		return geolink.Record{}, errx.Wrap(op, err)
	}
	if i := indexOf(recs, link); i >= 0 {
		return recs[i], nil
	}
	return geolink.Record{}, errx.E(op, errx.NotFound, geolink.ErrNotFound)
}

func (s *Store) Delete(ctx context.Context, link string) error {
	const op = "filestore.Delete"

	if err := ctx.Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}

	i := indexOf(recs, link)
	if i < 0 {
		return errx.E(op, errx.NotFound, geolink.ErrNotFound)
	}
	recs = append(recs[:i], recs[i+1:]...)

	if err := s.save(recs); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// load reads the whole file. A missing or empty file is an empty collection.
func (s *Store) load() ([]geolink.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []geolink.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []geolink.Record{}, nil
	}

	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	recs := make([]geolink.Record, 0, len(raw))
	for i, r := range raw {
		if r.Location == nil {
			return nil, fmt.Errorf("parse %s: entry %d (%q) has no location", s.path, i, r.Link)
		}
		recs = append(recs, geolink.Record{
			Link:        r.Link,
			Description: r.Description,
			Location:    geolink.Location{Lat: r.Location.Lat, Lng: r.Location.Lng},
		})
	}
	return recs, nil
}

// save replaces the file atomically: write a sibling temp file, then rename.
func (s *Store) save(recs []geolink.Record) error {
	raw := make([]fileRecord, 0, len(recs))
	for _, r := range recs {
		raw = append(raw, fileRecord{
			Link:        r.Link,
			Location:    &fileLocation{Lat: r.Location.Lat, Lng: r.Location.Lng},
			Description: r.Description,
		})
	}

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func indexOf(recs []geolink.Record, link string) int {
	for i, r := range recs {
		if r.Link == link {
			return i
		}
	}
	return -1
}
