package schedule

import (
	"fmt"
	"time"

	"github.com/agis/unical/internal/contract"
)

var supportedGranularities = []int{15, 30, 60}

func ParseGranularity(minutes int) (time.Duration, error) {
	for _, g := range supportedGranularities {
		if g == minutes {
			return time.Duration(minutes) * time.Minute, nil
		}
	}
	return 0, fmt.Errorf("unsupported granularity %d: use 15, 30 or 60", minutes)
}

type interval struct {
	start time.Time
	end   time.Time
}

// ComputeSlots returns the free candidates of a day grid stepped by
// granularity. A candidate is busy when an event strictly overlaps it;
// back-to-back boundaries do not count.
func (e Engine) ComputeSlots(day contract.Date, granularity time.Duration, events []contract.Event) []contract.Slot {
	if granularity <= 0 {
		return nil
	}
	dayStart := day.Midnight(e.loc)
	dayEnd := day.AddDays(1).Midnight(e.loc)

	busy := make([]interval, 0, len(events))
	for _, ev := range events {
		busy = append(busy, e.effectiveInterval(ev, dayStart))
	}

	slots := make([]contract.Slot, 0, int(dayEnd.Sub(dayStart)/granularity)+1)
	for start := dayStart; start.Before(dayEnd); start = start.Add(granularity) {
		end := start.Add(granularity)
		if end.After(dayEnd) {
			end = dayEnd
		}
		if overlapsBusy(start, end, busy) {
			continue
		}
		slots = append(slots, contract.Slot{Start: start, End: end, Minutes: int64(end.Sub(start).Minutes())})
	}
	return slots
}

// effectiveInterval substitutes the queried day's first hour for missing
// boundaries so malformed events still participate.
func (e Engine) effectiveInterval(ev contract.Event, dayStart time.Time) interval {
	start, ok := ev.Start.Resolve(e.loc)
	if !ok {
		start = dayStart
	}
	end, ok := ev.End.Resolve(e.loc)
	if !ok {
		end = dayStart.Add(time.Hour)
	}
	return interval{start: start, end: end}
}

func overlapsBusy(start, end time.Time, busy []interval) bool {
	for _, b := range busy {
		if b.start.Before(end) && b.end.After(start) {
			return true
		}
	}
	return false
}

// FormatSlot renders "HH:MM–HH:MM" in loc. A slot ending at the next
// midnight is shown as 24:00.
func FormatSlot(slot contract.Slot, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	start := slot.Start.In(loc)
	end := slot.End.In(loc)
	endLabel := end.Format("15:04")
	if end.Hour() == 0 && end.Minute() == 0 && contract.DateOf(end) != contract.DateOf(start) {
		endLabel = "24:00"
	}
	return start.Format("15:04") + "–" + endLabel
}
