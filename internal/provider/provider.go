// Package provider adapts Google Calendar and Microsoft Graph to a common
// fetch, add and delete surface.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agis/unical/internal/contract"
)

const (
	GoogleIcon  = "https://calendar.google.com/googlecalendar/images/favicons_2020q4/calendar_31.ico"
	OutlookIcon = "https://outlook.live.com/favicon.ico"
)

var (
	ErrNotFound    = errors.New("event not found")
	ErrNotSignedIn = errors.New("provider not signed in")
)

// EventInput is what the add-event form collects. For all-day events only
// the dates of Start and End are used and End is exclusive.
type EventInput struct {
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Location    string
	Description string
}

func (in EventInput) Validate() error {
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return fmt.Errorf("start and end are required")
	}
	if in.AllDay {
		if !contract.DateOf(in.End).Midnight(time.UTC).After(contract.DateOf(in.Start).Midnight(time.UTC)) {
			return fmt.Errorf("all-day end date must be after start date")
		}
		return nil
	}
	if !in.End.After(in.Start) {
		return fmt.Errorf("end must be after start")
	}
	return nil
}

// Provider is one signed-in calendar account.
type Provider interface {
	Source() contract.Source
	FetchMonth(ctx context.Context, monthStart time.Time) ([]contract.Event, error)
	AddEvent(ctx context.Context, in EventInput) (*contract.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Registry holds the providers that are signed in for this run.
type Registry map[contract.Source]Provider

func NewRegistry(providers ...Provider) Registry {
	r := Registry{}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r[p.Source()] = p
	}
	return r
}

func (r Registry) Lookup(source contract.Source) (Provider, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("unknown source %q: use google or outlook", source)
	}
	p, ok := r[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSignedIn, source)
	}
	return p, nil
}

// Sources returns the signed-in sources in a stable order.
func (r Registry) Sources() []contract.Source {
	out := make([]contract.Source, 0, len(r))
	for s := range r {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r))
	for _, s := range r.Sources() {
		out = append(out, r[s])
	}
	return out
}

func monthWindow(monthStart time.Time) (time.Time, time.Time) {
	y, m, _ := monthStart.Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, monthStart.Location())
	return from, from.AddDate(0, 1, 0)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
