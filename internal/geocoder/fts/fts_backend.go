// Package fts implements the full-text-indexed address book backend
// (variant A) on top of a per-region SQLite FTS5 database.
package fts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/trasaroute/trasaroute/internal/decompose"
	"github.com/trasaroute/trasaroute/internal/geocoder"
	"github.com/trasaroute/trasaroute/internal/model"
)

// Backend holds one read-only SQLite handle per region. The region-to-
// handle mapping is immutable after construction.
type Backend struct {
	mu      sync.RWMutex
	regions map[string]*sql.DB
}

// New opens one SQLite database per region. paths maps region name to the
// addressbook database file path; each is opened read-only since the
// backend never writes through this handle (the database, building table
// included, arrives pre-built).
func New(paths map[string]string) (*Backend, error) {
	b := &Backend{regions: make(map[string]*sql.DB, len(paths))}
	for region, path := range paths {
		dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", path)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("fts: open %q: %w", region, err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("fts: ping %q: %w", region, err)
		}
		b.regions[region] = db
	}
	return b, nil
}

// Close closes every region's database handle.
func (b *Backend) Close() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var firstErr error
	for _, db := range b.regions {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Lookup implements geocoder.Backend.
func (b *Backend) Lookup(ctx context.Context, region string, components geocoder.Components) (geocoder.LookupResult, error) {
	b.mu.RLock()
	db, ok := b.regions[region]
	b.mu.RUnlock()
	if !ok {
		return geocoder.LookupResult{}, geocoder.ErrRegionNotIndexed{Region: region}
	}

	hasStreet := components.Street != nil && *components.Street != ""
	hasBuilding := components.Building != nil && *components.Building != ""

	switch {
	case hasBuilding && hasStreet:
		return b.buildingMatches(ctx, db, *components.Street, *components.Building, components.City, components.Zipcode)
	case hasBuilding && !hasStreet:
		return geocoder.LookupResult{}, nil
	case hasStreet:
		return b.streetHints(ctx, db, *components.Street, components.City)
	default:
		return geocoder.LookupResult{}, nil
	}
}

// foldedTerm returns a prefix-match FTS term built from both the raw token
// and its accent-folded form so matches succeed whether the indexed row's
// diacritics were preserved or normalized into alt_street/alt_city.
func foldedTerm(raw string) string {
	folded := decompose.FoldAccents(strings.ToLower(raw), "polish")
	return fmt.Sprintf(`"%s"* OR "%s"*`, escapeFTS(raw), escapeFTS(folded))
}

func escapeFTS(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

func (b *Backend) buildingMatches(ctx context.Context, db *sql.DB, street, number string, city, zipcode *string) (geocoder.LookupResult, error) {
	var q strings.Builder
	q.WriteString(`SELECT id, longitude, latitude, country, city, zipcode, street, number FROM building WHERE building MATCH '{street alt_street}: `)
	q.WriteString(foldedTerm(street))
	q.WriteString(` AND {number}: "`)
	q.WriteString(escapeFTS(number))
	q.WriteString(`"*`)
	if city != nil && *city != "" {
		q.WriteString(` AND {city alt_city}: `)
		q.WriteString(foldedTerm(*city))
	}
	if zipcode != nil && *zipcode != "" {
		q.WriteString(` AND {zipcode}: "`)
		q.WriteString(escapeFTS(*zipcode))
		q.WriteString(`"*`)
	}
	q.WriteString(`' ORDER BY city, number`)

	rows, err := db.QueryContext(ctx, q.String())
	if err != nil {
		return geocoder.LookupResult{}, geocoder.ErrBackendError{Err: err}
	}
	defer rows.Close()

	var out geocoder.LookupResult
	for rows.Next() {
		var bld model.Building
		if err := rows.Scan(&bld.ID, &bld.Coords.Lng, &bld.Coords.Lat, &bld.Country, &bld.City, &bld.Zipcode, &bld.Street, &bld.Number); err != nil {
			return geocoder.LookupResult{}, geocoder.ErrBackendError{Err: err}
		}
		bld.Number = strings.ToUpper(bld.Number)
		out.Matches = append(out.Matches, bld)
	}
	if err := rows.Err(); err != nil {
		return geocoder.LookupResult{}, geocoder.ErrBackendError{Err: err}
	}
	return out, nil
}

func (b *Backend) streetHints(ctx context.Context, db *sql.DB, street string, city *string) (geocoder.LookupResult, error) {
	var q strings.Builder
	q.WriteString(`SELECT DISTINCT city, street FROM building WHERE building MATCH '{street alt_street}: `)
	q.WriteString(foldedTerm(street))
	if city != nil && *city != "" {
		q.WriteString(` AND {city}: `)
		q.WriteString(foldedTerm(*city))
	}
	q.WriteString(`' ORDER BY street, city`)

	rows, err := db.QueryContext(ctx, q.String())
	if err != nil {
		return geocoder.LookupResult{}, geocoder.ErrBackendError{Err: err}
	}
	defer rows.Close()

	var out geocoder.LookupResult
	for rows.Next() {
		var city, street string
		if err := rows.Scan(&city, &street); err != nil {
			return geocoder.LookupResult{}, geocoder.ErrBackendError{Err: err}
		}
		out.Hints = append(out.Hints, geocoder.Components{City: &city, Street: &street})
	}
	if err := rows.Err(); err != nil {
		return geocoder.LookupResult{}, geocoder.ErrBackendError{Err: err}
	}
	return out, nil
}
