// Package prefixtree implements the in-memory address book backend
// (variant B): a two-level index per region, street-name -> city ->
// street-index, where a street-index maps building number -> building.
// This is a working alternative construction, not the default production
// backend (see fts for that).
package prefixtree

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/trasaroute/trasaroute/internal/decompose"
	"github.com/trasaroute/trasaroute/internal/geocoder"
	"github.com/trasaroute/trasaroute/internal/model"
)

// streetIndex maps an uppercased building number to the building it names.
type streetIndex map[string]model.Building

// cityIndex maps a folded city name to that city's streetIndex.
type cityIndex map[string]streetIndex

// region is one region's street-name -> city -> streetIndex tree.
type region struct {
	mu      sync.RWMutex
	streets map[string]cityIndex
	sealed  bool
}

// Backend is the prefix-tree address book, one region tree per region.
type Backend struct {
	mu      sync.RWMutex
	regions map[string]*region
}

// New builds an empty backend ready for Insert calls.
func New() *Backend {
	return &Backend{regions: make(map[string]*region)}
}

func foldKey(s string) string {
	return decompose.FoldAccents(strings.ToLower(strings.TrimSpace(s)), "polish")
}

// Insert adds a building to regionName's tree. Insert is additive: a
// duplicate (street, city, number) tuple is silently dropped (buildings
// with multiple coordinates, e.g. large complexes, are folded together).
// Returns an error if coords, city, street, or number is empty.
func (b *Backend) Insert(regionName string, bld model.Building) error {
	if bld.Coords.IsEmpty() || bld.City == "" || bld.Street == "" || bld.Number == "" {
		return fmt.Errorf("prefixtree: building %d missing required field(s)", bld.ID)
	}

	b.mu.Lock()
	r, ok := b.regions[regionName]
	if !ok {
		r = &region{streets: make(map[string]cityIndex)}
		b.regions[regionName] = r
	}
	b.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("prefixtree: region %q is sealed", regionName)
	}

	streetKey := foldKey(bld.Street)
	cities, ok := r.streets[streetKey]
	if !ok {
		cities = make(cityIndex)
		r.streets[streetKey] = cities
	}
	cityKey := foldKey(bld.City)
	numbers, ok := cities[cityKey]
	if !ok {
		numbers = make(streetIndex)
		cities[cityKey] = numbers
	}
	numberKey := strings.ToUpper(bld.Number)
	if _, exists := numbers[numberKey]; exists {
		return nil // duplicate tuple, silently dropped
	}
	bld.Number = numberKey
	numbers[numberKey] = bld
	return nil
}

// Seal marks a region's tree read-only, permitting future read-path
// optimizations. Further Insert calls on that region fail.
func (b *Backend) Seal(regionName string) {
	b.mu.RLock()
	r, ok := b.regions[regionName]
	b.mu.RUnlock()
	if !ok {
		return
	}
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Size reports how many buildings are indexed for a region, for the
// insert-idempotence property (re-inserting the same tuple leaves this
// unchanged).
func (b *Backend) Size(regionName string) int {
	b.mu.RLock()
	r, ok := b.regions[regionName]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, cities := range r.streets {
		for _, numbers := range cities {
			n += len(numbers)
		}
	}
	return n
}

// Lookup implements geocoder.Backend.
func (b *Backend) Lookup(ctx context.Context, regionName string, components geocoder.Components) (geocoder.LookupResult, error) {
	b.mu.RLock()
	r, ok := b.regions[regionName]
	b.mu.RUnlock()
	if !ok {
		return geocoder.LookupResult{}, geocoder.ErrRegionNotIndexed{Region: regionName}
	}

	hasStreet := components.Street != nil && *components.Street != ""
	hasBuilding := components.Building != nil && *components.Building != ""

	switch {
	case hasBuilding && hasStreet:
		return r.buildingMatches(*components.Street, *components.Building, components.City, components.Zipcode), nil
	case hasBuilding && !hasStreet:
		return geocoder.LookupResult{}, nil
	case hasStreet:
		return r.streetHints(*components.Street, components.City), nil
	default:
		return geocoder.LookupResult{}, nil
	}
}

func (r *region) buildingMatches(street, number string, city, zipcode *string) geocoder.LookupResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streetPrefix := foldKey(street)
	numberPrefix := strings.ToUpper(number)
	cityPrefix := ""
	if city != nil {
		cityPrefix = foldKey(*city)
	}

	var out geocoder.LookupResult
	for streetKey, cities := range r.streets {
		if !strings.HasPrefix(streetKey, streetPrefix) {
			continue
		}
		for cityKey, numbers := range cities {
			if cityPrefix != "" && !strings.HasPrefix(cityKey, cityPrefix) {
				continue
			}
			for numKey, bld := range numbers {
				if !strings.HasPrefix(numKey, numberPrefix) {
					continue
				}
				if zipcode != nil && *zipcode != "" && !strings.HasPrefix(bld.Zipcode, *zipcode) {
					continue
				}
				out.Matches = append(out.Matches, bld)
			}
		}
	}
	sort.Slice(out.Matches, func(i, j int) bool {
		if out.Matches[i].City != out.Matches[j].City {
			return out.Matches[i].City < out.Matches[j].City
		}
		return out.Matches[i].Number < out.Matches[j].Number
	})
	return out
}

func (r *region) streetHints(street string, city *string) geocoder.LookupResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streetPrefix := foldKey(street)
	cityPrefix := ""
	if city != nil {
		cityPrefix = foldKey(*city)
	}

	type pair struct{ city, street string }
	seen := make(map[pair]bool)
	var out geocoder.LookupResult
	for streetKey, cities := range r.streets {
		if !strings.HasPrefix(streetKey, streetPrefix) {
			continue
		}
		for cityKey, numbers := range cities {
			if cityPrefix != "" && !strings.HasPrefix(cityKey, cityPrefix) {
				continue
			}
			for _, bld := range numbers {
				p := pair{city: bld.City, street: bld.Street}
				if seen[p] {
					continue
				}
				seen[p] = true
				c, s := bld.City, bld.Street
				out.Hints = append(out.Hints, geocoder.Components{City: &c, Street: &s})
				break
			}
		}
	}
	sort.Slice(out.Hints, func(i, j int) bool {
		si, sj := derefStr(out.Hints[i].Street), derefStr(out.Hints[j].Street)
		if si != sj {
			return si < sj
		}
		return derefStr(out.Hints[i].City) < derefStr(out.Hints[j].City)
	})
	return out
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
