// Package schedule merges normalized events from several providers and
// derives day views and free slots from them. Every function is pure: inputs
// are never mutated and nothing is cached between calls.
package schedule

import (
	"sort"
	"time"

	"github.com/agis/unical/internal/contract"
)

// Engine carries the display location used to place all-day dates on the
// timeline. It holds no other state.
type Engine struct {
	loc *time.Location
}

func New(loc *time.Location) Engine {
	if loc == nil {
		loc = time.Local
	}
	return Engine{loc: loc}
}

func (e Engine) Location() *time.Location { return e.loc }

// Merge flattens one event set per provider into a single slice. Order is
// not meaningful until SortByStart runs.
func Merge(sets ...[]contract.Event) []contract.Event {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	out := make([]contract.Event, 0, total)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// SortByStart returns a stably sorted copy. Events without a resolvable
// start come first.
func (e Engine) SortByStart(events []contract.Event) []contract.Event {
	out := make([]contract.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].Start.Resolve(e.loc)
		b, bok := out[j].Start.Resolve(e.loc)
		if !aok || !bok {
			return !aok && bok
		}
		return a.Before(b)
	})
	return out
}

// FilterForDay keeps events whose start falls on day. A multi-day event only
// matches the day it starts on.
func (e Engine) FilterForDay(events []contract.Event, day contract.Date) []contract.Event {
	out := make([]contract.Event, 0, len(events))
	for _, ev := range events {
		start, ok := ev.Start.Resolve(e.loc)
		if !ok {
			continue
		}
		if contract.DateOf(start.In(e.loc)) == day {
			out = append(out, ev)
		}
	}
	return out
}
