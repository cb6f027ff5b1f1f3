// Package aggregate fetches a month from every signed-in provider, merges
// the results and routes mutations back to the provider that owns an event.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/provider"
	"github.com/agis/unical/internal/schedule"
)

var (
	// ErrStale is returned by Load when a newer load or a sign-in change
	// started before this one finished. The result is not committed.
	ErrStale = errors.New("aggregate: result superseded by a newer load")

	ErrNoProviders = errors.New("aggregate: no provider is signed in")

	// ErrRefresh wraps a failed reload after a mutation that itself
	// succeeded.
	ErrRefresh = errors.New("aggregate: refresh after change failed")
)

// View is a committed load: the merged month sorted by start.
type View struct {
	Month      time.Time
	Events     []contract.Event
	Warnings   []string
	Failures   map[contract.Source]error
	Timings    map[contract.Source]time.Duration
	Generation uint64
}

type Aggregator struct {
	engine schedule.Engine
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	providers provider.Registry
	gen       uint64
	month     time.Time
	view      View
}

func New(reg provider.Registry, engine schedule.Engine, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = provider.Registry{}
	}
	return &Aggregator{engine: engine, logger: logger, now: time.Now, providers: reg}
}

// SetProviders replaces the signed-in set. Loads already in flight become stale.
func (a *Aggregator) SetProviders(reg provider.Registry) {
	if reg == nil {
		reg = provider.Registry{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers = reg
	a.gen++
}

func (a *Aggregator) Providers() provider.Registry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.providers
}

// Current returns the last committed view.
func (a *Aggregator) Current() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// Focus sets the month that mutations reload without fetching it.
func (a *Aggregator) Focus(month time.Time) {
	monthStart, _ := a.engine.MonthBounds(month)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.month = monthStart
}

type fetchResult struct {
	events []contract.Event
	err    error
	took   time.Duration
}

// Load fetches month from every provider concurrently and merges once all
// of them have settled. A provider that fails contributes no events and a
// warning; the load only fails when every provider does.
func (a *Aggregator) Load(ctx context.Context, month time.Time) (View, error) {
	monthStart, _ := a.engine.MonthBounds(month)

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.month = monthStart
	providers := a.providers.Providers()
	a.mu.Unlock()

	if len(providers) == 0 {
		return View{}, ErrNoProviders
	}

	results := make([]fetchResult, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			started := time.Now()
			events, err := p.FetchMonth(ctx, monthStart)
			results[i] = fetchResult{events: events, err: err, took: time.Since(started)}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return View{}, err
	}

	view := View{
		Month:      monthStart,
		Failures:   map[contract.Source]error{},
		Timings:    map[contract.Source]time.Duration{},
		Generation: gen,
	}
	sets := make([][]contract.Event, 0, len(providers))
	var errs []error
	for i, p := range providers {
		res := results[i]
		view.Timings[p.Source()] = res.took
		if res.err != nil {
			a.logger.Warn("provider fetch failed", "source", p.Source(), "month", monthStart.Format("2006-01"), "err", res.err)
			view.Failures[p.Source()] = res.err
			view.Warnings = append(view.Warnings, fmt.Sprintf("%s: %v", p.Source(), res.err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Source(), res.err))
			continue
		}
		a.logger.Debug("provider fetch", "source", p.Source(), "events", len(res.events), "took", res.took)
		sets = append(sets, res.events)
	}
	if len(errs) == len(providers) {
		return View{}, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
	}
	view.Events = a.engine.SortByStart(schedule.Merge(sets...))

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		a.logger.Debug("discarding stale load", "generation", gen, "current", a.gen)
		return View{}, ErrStale
	}
	a.view = view
	return view, nil
}

// DeleteEvent routes the delete to the provider that owns source, then
// reloads the current month.
func (a *Aggregator) DeleteEvent(ctx context.Context, id string, source contract.Source) (View, error) {
	if id == "" {
		return View{}, fmt.Errorf("event id is required")
	}
	p, err := a.Providers().Lookup(source)
	if err != nil {
		return View{}, err
	}
	if err := p.DeleteEvent(ctx, id); err != nil {
		return View{}, err
	}
	a.logger.Info("event deleted", "source", source, "id", id)
	return a.reload(ctx)
}

// AddEvent creates the event with the provider for source, then reloads the
// current month.
func (a *Aggregator) AddEvent(ctx context.Context, source contract.Source, in provider.EventInput) (*contract.Event, View, error) {
	p, err := a.Providers().Lookup(source)
	if err != nil {
		return nil, View{}, err
	}
	created, err := p.AddEvent(ctx, in)
	if err != nil {
		return nil, View{}, err
	}
	a.logger.Info("event created", "source", source, "id", created.ID)
	view, err := a.reload(ctx)
	return created, view, err
}

func (a *Aggregator) reload(ctx context.Context) (View, error) {
	a.mu.Lock()
	month := a.month
	a.mu.Unlock()
	if month.IsZero() {
		month = a.now()
	}
	view, err := a.Load(ctx, month)
	if err != nil {
		return View{}, fmt.Errorf("%w: %w", ErrRefresh, err)
	}
	return view, nil
}
