package schedule

import (
	"testing"
	"time"

	"github.com/agis/unical/internal/contract"
)

func TestComputeSlotsTilesDayWithoutEvents(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	for _, g := range []int{15, 30, 60} {
		gran, err := ParseGranularity(g)
		if err != nil {
			t.Fatal(err)
		}
		slots := eng.ComputeSlots(day, gran, nil)
		if want := 24 * 60 / g; len(slots) != want {
			t.Fatalf("granularity %d: expected %d slots, got %d", g, want, len(slots))
		}
		if !slots[0].Start.Equal(day.Midnight(time.UTC)) {
			t.Fatalf("granularity %d: first slot starts at %s", g, slots[0].Start)
		}
		for i := 1; i < len(slots); i++ {
			if !slots[i].Start.Equal(slots[i-1].End) {
				t.Fatalf("granularity %d: gap or overlap at %d", g, i)
			}
		}
		if !slots[len(slots)-1].End.Equal(day.AddDays(1).Midnight(time.UTC)) {
			t.Fatalf("granularity %d: last slot ends at %s", g, slots[len(slots)-1].End)
		}
	}
}

func TestComputeSlotsTouchingIsNotOverlap(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	at := func(h int) time.Time { return time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC) }
	slots := eng.ComputeSlots(day, time.Hour, []contract.Event{timedEvent("e", contract.SourceGoogle, at(9), at(10))})
	free := map[int]bool{}
	for _, s := range slots {
		free[s.Start.Hour()] = true
	}
	if free[9] {
		t.Fatalf("09:00-10:00 should be excluded")
	}
	if !free[8] || !free[10] {
		t.Fatalf("adjacent slots should stay free: 8=%v 10=%v", free[8], free[10])
	}
	if len(slots) != 23 {
		t.Fatalf("expected 23 free slots, got %d", len(slots))
	}
}

func TestComputeSlotsPartialOverlapExcludes(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	start := time.Date(2024, 6, 1, 9, 10, 0, 0, time.UTC)
	slots := eng.ComputeSlots(day, 30*time.Minute, []contract.Event{timedEvent("e", contract.SourceGoogle, start, start.Add(25*time.Minute))})
	for _, s := range slots {
		if s.Start.Hour() == 9 {
			t.Fatalf("slot %s overlaps 09:10-09:35", s.Start.Format("15:04"))
		}
	}
	if len(slots) != 46 {
		t.Fatalf("expected 46 free slots, got %d", len(slots))
	}
}

func TestComputeSlotsMissingBoundariesFallBackToFirstHour(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	noEnd := contract.Event{ID: "noend", Start: contract.Timed(time.Date(2024, 6, 1, 0, 30, 0, 0, time.UTC))}
	slots := eng.ComputeSlots(day, 30*time.Minute, []contract.Event{{ID: "empty"}, noEnd})
	if len(slots) != 46 {
		t.Fatalf("expected first hour blocked, got %d free slots", len(slots))
	}
	if got := slots[0].Start.Hour(); got != 1 {
		t.Fatalf("expected first free slot at 01:00, got %02d", got)
	}
}

func TestComputeSlotsAllDayBlocksWholeDay(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	ev := contract.Event{ID: "off", Start: contract.AllDay(day), End: contract.AllDay(day.AddDays(1))}
	if slots := eng.ComputeSlots(day, time.Hour, []contract.Event{ev}); len(slots) != 0 {
		t.Fatalf("expected no free slots, got %d", len(slots))
	}
}

func TestComputeSlotsToleratesReversedInterval(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	ev := timedEvent("rev", contract.SourceOutlook,
		time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	if slots := eng.ComputeSlots(day, time.Hour, []contract.Event{ev}); len(slots) != 24 {
		t.Fatalf("expected reversed interval to block nothing, got %d free", len(slots))
	}
}

func TestComputeSlotsClipsUnevenGranularity(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	slots := eng.ComputeSlots(day, 7*time.Hour, nil)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	last := slots[3]
	if last.Minutes != 180 || !last.End.Equal(day.AddDays(1).Midnight(time.UTC)) {
		t.Fatalf("expected last slot clipped to 3h ending at midnight, got %+v", last)
	}
	if eng.ComputeSlots(day, 0, nil) != nil {
		t.Fatalf("expected nil for zero granularity")
	}
}

func TestComputeSlotsDoesNotMutateInput(t *testing.T) {
	eng := New(time.UTC)
	day := contract.Date{Year: 2024, Month: 6, Day: 1}
	events := []contract.Event{{ID: "x"}}
	_ = eng.ComputeSlots(day, time.Hour, events)
	if events[0].Start.Known() || events[0].End.Known() {
		t.Fatalf("fallback leaked into input event")
	}
}

func TestParseGranularity(t *testing.T) {
	if _, err := ParseGranularity(45); err == nil {
		t.Fatalf("expected error for 45")
	}
	g, err := ParseGranularity(15)
	if err != nil || g != 15*time.Minute {
		t.Fatalf("ParseGranularity(15) = %v, %v", g, err)
	}
}

func TestFormatSlot(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	cases := []struct {
		start, end time.Time
		want       string
	}{
		{time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC), "09:00–09:30"},
		{time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC), "23:00–24:00"},
	}
	for _, tc := range cases {
		if got := FormatSlot(contract.Slot{Start: tc.start, End: tc.end}, loc); got != tc.want {
			t.Fatalf("FormatSlot = %q, want %q", got, tc.want)
		}
	}
}
