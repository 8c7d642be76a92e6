package geocoder

import (
	"context"
	"testing"

	"github.com/trasaroute/trasaroute/internal/decompose"
	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/model"
)

// fakeLabeler labels every rune LabelStreet, enough to exercise the
// decompose -> backend dispatch path without a real NER.
type fakeLabeler struct{}

func (fakeLabeler) Label(text string) ([]decompose.Label, error) {
	runes := []rune(text)
	labels := make([]decompose.Label, len(runes))
	for i := range labels {
		labels[i] = decompose.LabelStreet
	}
	return labels, nil
}

type fakeBackend struct {
	lastRegion     string
	lastComponents Components
	result         LookupResult
	err            error
}

func (b *fakeBackend) Lookup(ctx context.Context, region string, components Components) (LookupResult, error) {
	b.lastRegion = region
	b.lastComponents = components
	return b.result, b.err
}

func podlaskieLocator(t *testing.T) *geo.Locator {
	t.Helper()
	region := geo.Region{
		Name: "podlaskie",
		Polygon: geo.Polygon{Points: []geo.Point{
			{Lat: 52.8, Lng: 22.5},
			{Lat: 52.8, Lng: 23.8},
			{Lat: 53.9, Lng: 23.8},
			{Lat: 53.9, Lng: 22.5},
			{Lat: 52.8, Lng: 22.5},
		}},
	}
	locator, err := geo.NewLocator([]geo.Region{region})
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	return locator
}

func TestFacadeLookupDispatchesToBackend(t *testing.T) {
	backend := &fakeBackend{result: LookupResult{Matches: []model.Building{{ID: 1, Street: "Lipowa"}}}}
	facade := NewFacade(podlaskieLocator(t), fakeLabeler{}, backend)

	result, err := facade.Lookup(context.Background(), geo.Point{Lat: 53.1, Lng: 23.1}, "Lipowa 1", Components{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if backend.lastRegion != "podlaskie" {
		t.Errorf("expected backend dispatched to podlaskie, got %q", backend.lastRegion)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected matches to pass through, got %+v", result)
	}
}

func TestFacadeLookupUnsupportedLocation(t *testing.T) {
	facade := NewFacade(podlaskieLocator(t), fakeLabeler{}, &fakeBackend{})

	_, err := facade.Lookup(context.Background(), geo.Point{Lat: 0, Lng: 0}, "anything", Components{})
	if err == nil {
		t.Fatal("expected an error for a point outside every region")
	}
}

func TestFacadeLookupAppliesOverrides(t *testing.T) {
	backend := &fakeBackend{}
	facade := NewFacade(podlaskieLocator(t), fakeLabeler{}, backend)

	city := "Bialystok"
	_, err := facade.Lookup(context.Background(), geo.Point{Lat: 53.1, Lng: 23.1}, "Lipowa 1", Components{City: &city})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if backend.lastComponents.City == nil || *backend.lastComponents.City != city {
		t.Errorf("expected override city to reach the backend, got %+v", backend.lastComponents)
	}
}

func TestFacadeLookupWithoutCachePassesThrough(t *testing.T) {
	backend := &fakeBackend{result: LookupResult{Matches: []model.Building{{ID: 7}}}}
	facade := NewFacade(podlaskieLocator(t), fakeLabeler{}, backend)
	// no cache attached (WithCache not called): should simply pass through
	// on every call without error, proving a nil cache is a safe no-op.
	ctx := context.Background()
	loc := geo.Point{Lat: 53.1, Lng: 23.1}

	if _, err := facade.Lookup(ctx, loc, "Lipowa 1", Components{}); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if _, err := facade.Lookup(ctx, loc, "Lipowa 1", Components{}); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
}
