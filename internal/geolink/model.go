package geolink

import (
	"fmt"
	"math"
)

// Location is a WGS84 coordinate pair in decimal degrees.
type Location struct {
	Lat float64
	Lng float64
}

// Record is a link pinned to a place. Link is the unique key.
type Record struct {
	Link        string
	Description *string
	Location    Location
}

// UpsertStatus reports whether an upsert inserted a new record or replaced an
// existing one.
type UpsertStatus uint8

const (
	Created UpsertStatus = iota + 1
	Updated
)

func (s UpsertStatus) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return fmt.Sprintf("UpsertStatus(%d)", s)
	}
}

// Validate checks that both coordinates are finite and in range.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", l.Lat)
	}
	if math.IsNaN(l.Lng) || math.IsInf(l.Lng, 0) || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", l.Lng)
	}
	return nil
}

// Validate checks the record's key and location. The returned error wraps
// ErrInvalidRecord.
func (r Record) Validate() error {
	if err := ValidateLink(r.Link); err != nil {
		return err
	}
	if err := r.Location.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	if r.Description != nil {
		d := *r.Description
		r.Description = &d
	}
	return r
}
