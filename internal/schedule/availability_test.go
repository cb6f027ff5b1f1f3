package schedule

import (
	"testing"
	"time"

	"github.com/agis/unical/internal/contract"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("09:00-17:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.String() != "09:00-17:30" {
		t.Fatalf("unexpected window: %s", w)
	}
	if _, err := ParseWindow("18:00-24:00"); err != nil {
		t.Fatalf("expected 24:00 end to be accepted: %v", err)
	}
	for _, bad := range []string{"24:00-10:00", "10:00-09:00", "10:00-10:00", "9-17", "09:60-10:00"} {
		if _, err := ParseWindow(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseAvailability(t *testing.T) {
	avail, err := ParseAvailability(map[string]string{"Mon": "09:00-17:00", "friday": "10:00-12:00", "sat": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(avail) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(avail))
	}
	if avail[time.Friday].StartHour != 10 {
		t.Fatalf("unexpected friday window: %+v", avail[time.Friday])
	}
	if _, err := ParseAvailability(map[string]string{"funday": "09:00-10:00"}); err == nil {
		t.Fatalf("expected invalid weekday error")
	}
}

func TestWithinAvailabilityKeepsSlotsInsideWindow(t *testing.T) {
	eng := New(time.UTC)
	saturday := contract.Date{Year: 2024, Month: 6, Day: 1}
	avail := Availability{time.Saturday: {StartHour: 9, EndHour: 12}}
	slots := eng.WithinAvailability(eng.ComputeSlots(saturday, time.Hour, nil), avail)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots in 09:00-12:00, got %d", len(slots))
	}
	if got := FormatSlot(slots[0], time.UTC); got != "09:00–10:00" {
		t.Fatalf("unexpected first slot %s", got)
	}

	sunday := saturday.AddDays(1)
	all := eng.ComputeSlots(sunday, time.Hour, nil)
	if kept := eng.WithinAvailability(all, avail); len(kept) != len(all) {
		t.Fatalf("weekday without window should keep all slots, got %d", len(kept))
	}
}

func TestWithinAvailabilityDropsStraddlingSlots(t *testing.T) {
	eng := New(time.UTC)
	saturday := contract.Date{Year: 2024, Month: 6, Day: 1}
	avail := Availability{time.Saturday: {StartHour: 9, StartMinute: 30, EndHour: 11}}
	slots := eng.WithinAvailability(eng.ComputeSlots(saturday, time.Hour, nil), avail)
	if len(slots) != 1 || slots[0].Start.Hour() != 10 {
		t.Fatalf("expected only 10:00-11:00, got %+v", slots)
	}
}
