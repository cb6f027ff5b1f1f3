package schedule

import (
	"testing"
	"time"

	"github.com/agis/unical/internal/contract"
)

func TestMonthBounds(t *testing.T) {
	eng := New(time.UTC)
	start, end := eng.MonthBounds(time.Date(2024, 2, 17, 15, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", end)
	}
}

func TestMonthGridCountsByStartDay(t *testing.T) {
	eng := New(time.UTC)
	month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	at := func(d, h int) time.Time { return time.Date(2024, 2, d, h, 0, 0, 0, time.UTC) }
	events := []contract.Event{
		timedEvent("o1", contract.SourceOutlook, at(5, 9), at(5, 10)),
		timedEvent("g1", contract.SourceGoogle, at(5, 11), at(5, 12)),
		{ID: "g2", Source: contract.SourceGoogle, Start: contract.AllDay(contract.Date{Year: 2024, Month: 2, Day: 5}), End: contract.AllDay(contract.Date{Year: 2024, Month: 2, Day: 6})},
		timedEvent("g3", contract.SourceGoogle, at(29, 9), at(29, 10)),
		timedEvent("outside", contract.SourceGoogle, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		{ID: "nostart", Source: contract.SourceOutlook},
	}
	grid := eng.MonthGrid(month, events)
	if len(grid) != 29 {
		t.Fatalf("expected 29 rows for leap February, got %d", len(grid))
	}
	fifth := grid[4]
	if fifth.Date.Day != 5 || fifth.Total != 3 || fifth.AllDay != 1 || fifth.Timed != 2 {
		t.Fatalf("unexpected row for day 5: %+v", fifth)
	}
	if len(fifth.Sources) != 2 || fifth.Sources[0] != contract.SourceGoogle || fifth.Sources[1] != contract.SourceOutlook {
		t.Fatalf("unexpected sources: %v", fifth.Sources)
	}
	if grid[28].Total != 1 {
		t.Fatalf("expected one event on the 29th, got %+v", grid[28])
	}
	total := 0
	for _, row := range grid {
		total += row.Total
	}
	if total != 4 {
		t.Fatalf("expected 4 events on the grid, got %d", total)
	}
}
