package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agis/unical/internal/contract"
)

type stubProvider struct{ source contract.Source }

func (s stubProvider) Source() contract.Source { return s.source }
func (s stubProvider) FetchMonth(context.Context, time.Time) ([]contract.Event, error) {
	return nil, nil
}
func (s stubProvider) AddEvent(context.Context, EventInput) (*contract.Event, error) { return nil, nil }
func (s stubProvider) DeleteEvent(context.Context, string) error                     { return nil }

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(stubProvider{contract.SourceOutlook}, nil)
	if _, err := r.Lookup(contract.SourceOutlook); err != nil {
		t.Fatalf("Lookup(outlook): %v", err)
	}
	if _, err := r.Lookup(contract.SourceGoogle); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if _, err := r.Lookup("icloud"); err == nil || errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestRegistrySourcesOrdered(t *testing.T) {
	r := NewRegistry(stubProvider{contract.SourceOutlook}, stubProvider{contract.SourceGoogle})
	got := r.Sources()
	if len(got) != 2 || got[0] != contract.SourceGoogle || got[1] != contract.SourceOutlook {
		t.Fatalf("unexpected order: %v", got)
	}
	if ps := r.Providers(); ps[0].Source() != contract.SourceGoogle {
		t.Fatalf("unexpected provider order")
	}
}

func TestMonthWindow(t *testing.T) {
	from, to := monthWindow(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	if !from.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %s - %s", from, to)
	}
}
