// Package storetest holds a behaviour suite that every geolink.Store
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sundayezeilo/geolinks/internal/errx"
	"github.com/sundayezeilo/geolinks/internal/geolink"
)

// SuiteBase defines a re-usable set of store tests that can be executed
// against any geolink.Store. Each test assumes an empty store.
type SuiteBase struct {
	s geolink.Store
}

// SetStore configures the suite to run all tests against s.
func (b *SuiteBase) SetStore(s geolink.Store) {
	b.s = s
}

var (
	berlin      = geolink.Location{Lat: 52.5200, Lng: 13.4050}
	berlinNorth = geolink.Location{Lat: 52.6000, Lng: 13.4050}
)

func desc(s string) *string { return &s }

// TestUpsertCreatesThenUpdates verifies that the second upsert of a key
// replaces the first and reports Updated.
func (b *SuiteBase) TestUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	link := "https://example.com/place"

	status, err := b.s.Upsert(ctx, geolink.Record{Link: link, Location: berlin})
	require.NoError(t, err)
	assert.Equal(t, geolink.Created, status)

	status, err = b.s.Upsert(ctx, geolink.Record{Link: link, Location: berlinNorth, Description: desc("moved")})
	require.NoError(t, err)
	assert.Equal(t, geolink.Updated, status)

	all, err := b.s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "upsert of an existing key must not add a record")
	assert.Equal(t, berlinNorth, all[0].Location)
	require.NotNil(t, all[0].Description)
	assert.Equal(t, "moved", *all[0].Description)

	// Repeating the same write is idempotent apart from the status.
	status, err = b.s.Upsert(ctx, geolink.Record{Link: link, Location: berlinNorth, Description: desc("moved")})
	require.NoError(t, err)
	assert.Equal(t, geolink.Updated, status)
}

// TestUpsertClearsDescription verifies that records are replaced wholesale.
func (b *SuiteBase) TestUpsertClearsDescription(t *testing.T) {
	ctx := context.Background()
	link := "https://example.com/cafe"

	_, err := b.s.Upsert(ctx, geolink.Record{Link: link, Location: berlin, Description: desc("coffee")})
	require.NoError(t, err)
	_, err = b.s.Upsert(ctx, geolink.Record{Link: link, Location: berlin})
	require.NoError(t, err)

	got, err := b.s.FetchByKey(ctx, link)
	require.NoError(t, err)
	assert.Nil(t, got.Description)
}

// TestUpsertRejectsInvalid verifies that the store validates before writing.
func (b *SuiteBase) TestUpsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()

	invalid := []geolink.Record{
		{Link: "not a url", Location: berlin},
		{Link: "", Location: berlin},
		{Link: "https://example.com", Location: geolink.Location{Lat: 91, Lng: 0}},
		{Link: "https://example.com", Location: geolink.Location{Lat: 0, Lng: -181}},
	}
	for _, rec := range invalid {
		_, err := b.s.Upsert(ctx, rec)
		assert.ErrorIs(t, err, geolink.ErrInvalidRecord, "record %+v", rec)
		assert.Equal(t, errx.Invalid, errx.KindOf(err))
	}

	all, err := b.s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "rejected records must not be persisted")
}

// TestFetchByKey verifies point lookups, including exact-match keys.
func (b *SuiteBase) TestFetchByKey(t *testing.T) {
	ctx := context.Background()
	rec := geolink.Record{Link: "https://example.com/Path", Location: berlin, Description: desc("d")}

	_, err := b.s.Upsert(ctx, rec)
	require.NoError(t, err)

	got, err := b.s.FetchByKey(ctx, rec.Link)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = b.s.FetchByKey(ctx, "https://example.com/path")
	assert.ErrorIs(t, err, geolink.ErrNotFound, "keys are case sensitive")
	assert.Equal(t, errx.NotFound, errx.KindOf(err))
}

// TestFetchAll verifies that every stored record is returned exactly once.
func (b *SuiteBase) TestFetchAll(t *testing.T) {
	ctx := context.Background()

	all, err := b.s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	want := make([]string, 0, 20)
	for i := range 20 {
		link := fmt.Sprintf("https://example.com/%02d", i)
		want = append(want, link)
		_, err := b.s.Upsert(ctx, geolink.Record{Link: link, Location: geolink.Location{Lat: float64(i), Lng: float64(-i)}})
		require.NoError(t, err)
	}

	all, err = b.s.FetchAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, links(all))

	for _, r := range all {
		var i int
		_, err := fmt.Sscanf(r.Link, "https://example.com/%d", &i)
		require.NoError(t, err)
		assert.Equal(t, geolink.Location{Lat: float64(i), Lng: float64(-i)}, r.Location)
	}
}

// TestDelete verifies removal and the NotFound path.
func (b *SuiteBase) TestDelete(t *testing.T) {
	ctx := context.Background()

	_, err := b.s.Upsert(ctx, geolink.Record{Link: "https://a.example", Location: berlin})
	require.NoError(t, err)
	_, err = b.s.Upsert(ctx, geolink.Record{Link: "https://b.example", Location: berlin})
	require.NoError(t, err)

	err = b.s.Delete(ctx, "https://missing.example")
	assert.ErrorIs(t, err, geolink.ErrNotFound)
	assert.Equal(t, errx.NotFound, errx.KindOf(err))

	all, err := b.s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "failed delete must leave the collection unchanged")

	require.NoError(t, b.s.Delete(ctx, "https://a.example"))

	_, err = b.s.FetchByKey(ctx, "https://a.example")
	assert.ErrorIs(t, err, geolink.ErrNotFound)

	all, err = b.s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.example"}, links(all))

	// Deleted keys can be created again.
	status, err := b.s.Upsert(ctx, geolink.Record{Link: "https://a.example", Location: berlin})
	require.NoError(t, err)
	assert.Equal(t, geolink.Created, status)
}

// TestConcurrentUpserts verifies that concurrent writers to the same and to
// distinct keys never lose or duplicate records.
func (b *SuiteBase) TestConcurrentUpserts(t *testing.T) {
	ctx := context.Background()

	const (
		writers = 8
		perKey  = 5
	)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perKey {
				recs := []geolink.Record{
					{Link: "https://shared.example", Location: geolink.Location{Lat: float64(w), Lng: float64(i)}},
					{Link: fmt.Sprintf("https://w%d.example", w), Location: berlin},
				}
				for _, rec := range recs {
					status, err := b.s.Upsert(ctx, rec)
					if !assert.NoError(t, err) {
						return
					}
					if status == geolink.Created {
						mu.Lock()
						created++
						mu.Unlock()
					}
				}
			}
		}()
	}
	wg.Wait()

	all, err := b.s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, writers+1)
	assert.Equal(t, writers+1, created, "each key must be reported created exactly once")
}

func links(recs []geolink.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Link)
	}
	sort.Strings(out)
	return out
}
