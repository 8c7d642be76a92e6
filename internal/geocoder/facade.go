package geocoder

import (
	"context"

	"github.com/trasaroute/trasaroute/internal/decompose"
	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/geo"
)

// Labeler is the external NER contract the decomposer depends on.
type Labeler = decompose.Labeler

// Facade orchestrates locate -> decompose -> override -> adjust -> backend
// dispatch for one geocode request.
type Facade struct {
	locator *geo.Locator
	labeler Labeler
	backend Backend
	cache   *ResultCache
}

// NewFacade builds a façade over a region locator, an address labeler, and
// a backend (fts or prefixtree, selected by the caller at construction).
func NewFacade(locator *geo.Locator, labeler Labeler, backend Backend) *Facade {
	return &Facade{locator: locator, labeler: labeler, backend: backend}
}

// WithCache attaches a result cache; nil disables caching.
func (f *Facade) WithCache(cache *ResultCache) *Facade {
	f.cache = cache
	return f
}

// Lookup implements lookup(user_location, query_text, overrides) ->
// lookup_result.
func (f *Facade) Lookup(ctx context.Context, userLocation geo.Point, queryText string, overrides Components) (LookupResult, error) {
	region, ok := f.locator.Locate(userLocation)
	if !ok {
		return LookupResult{}, errs.InvalidArgument("unsupported_location")
	}

	key := cacheKey(region.Name, queryText, overrides)
	if cached, ok := f.cache.get(ctx, key); ok {
		return cached, nil
	}

	decomposed, err := decompose.Decompose(f.labeler, queryText)
	if err != nil {
		return LookupResult{}, errs.ServerErrorWrap(err, "server_error")
	}

	merged := decompose.ApplyOverrides(decomposed, overrides)
	adjusted := decompose.PracticalAdjust(merged)
	sanitized := sanitizeComponents(adjusted)

	result, err := f.backend.Lookup(ctx, region.Name, sanitized)
	if err != nil {
		switch err.(type) {
		case ErrRegionNotIndexed:
			return LookupResult{}, errs.ServerErrorWrap(err, "region_not_indexed")
		default:
			return LookupResult{}, errs.ServerErrorWrap(err, "backend_error")
		}
	}

	f.cache.set(ctx, key, result)
	return result, nil
}
