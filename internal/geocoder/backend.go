// Package geocoder implements the address book backend contract and the
// geocoder façade that sits in front of it.
package geocoder

import (
	"context"
	"fmt"

	"github.com/trasaroute/trasaroute/internal/decompose"
	"github.com/trasaroute/trasaroute/internal/model"
)

// Components mirrors decompose.Components; kept as a distinct alias at the
// package boundary so backend implementations don't need to import the
// decomposer package for the internals of its result type.
type Components = decompose.Components

// LookupResult is the address book backend's response: exact building
// matches, or distinct (city, street) hints when the query is too broad to
// resolve to specific buildings.
type LookupResult struct {
	Matches []model.Building `json:"matches"`
	Hints   []Components     `json:"hints"`
}

// Backend is the polymorphic address book contract. Exactly one of the two
// variants (fts, prefixtree) backs any given region.
type Backend interface {
	// Lookup lookup(region, components) -> {matches, hints}. Returns
	// region_not_indexed if the region has no bound index, backend_error on
	// any underlying engine failure.
	Lookup(ctx context.Context, region string, components Components) (LookupResult, error)
}

// ErrRegionNotIndexed is returned by a Backend when the region has no
// bound index.
type ErrRegionNotIndexed struct{ Region string }

func (e ErrRegionNotIndexed) Error() string {
	return fmt.Sprintf("geocoder: region %q is not indexed", e.Region)
}

// ErrBackendError wraps an underlying engine failure.
type ErrBackendError struct{ Err error }

func (e ErrBackendError) Error() string { return fmt.Sprintf("geocoder: backend error: %v", e.Err) }
func (e ErrBackendError) Unwrap() error { return e.Err }

// lookupPolicy applies the shared building/street dispatch policy used by
// both backend variants: a building number alone (no street) searches too
// wide a space and returns nothing; a street alone returns hints; both
// present returns exact matches; neither returns nothing.
func lookupPolicy(c Components) (wantBuildingMatches, wantHints bool) {
	hasStreet := c.Street != nil && *c.Street != ""
	hasBuilding := c.Building != nil && *c.Building != ""
	switch {
	case hasBuilding && hasStreet:
		return true, false
	case hasBuilding && !hasStreet:
		return false, false
	case hasStreet:
		return false, true
	default:
		return false, false
	}
}

func sanitizeComponents(c Components) Components {
	return Components{
		City:     sanitizePtr(c.City),
		Street:   sanitizePtr(c.Street),
		Building: sanitizePtr(c.Building),
		Zipcode:  sanitizePtr(c.Zipcode),
	}
}
