package schedule

import (
	"sort"
	"time"

	"github.com/agis/unical/internal/contract"
)

type DaySummary struct {
	Date    contract.Date     `json:"date"`
	Total   int               `json:"total"`
	AllDay  int               `json:"all_day"`
	Timed   int               `json:"timed"`
	Sources []contract.Source `json:"sources,omitempty"`
}

// MonthBounds returns the first instant of month's month and the first
// instant of the following month, in the engine location.
func (e Engine) MonthBounds(month time.Time) (time.Time, time.Time) {
	y, m, _ := month.In(e.loc).Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, e.loc)
	return start, start.AddDate(0, 1, 0)
}

// MonthGrid returns one row per day of month, counting events by the day
// they start on. Events with an unknown start are not placed on the grid.
func (e Engine) MonthGrid(month time.Time, events []contract.Event) []DaySummary {
	start, end := e.MonthBounds(month)
	buckets := map[contract.Date]*DaySummary{}
	seen := map[contract.Date]map[contract.Source]bool{}
	for _, ev := range events {
		at, ok := ev.Start.Resolve(e.loc)
		if !ok {
			continue
		}
		day := contract.DateOf(at.In(e.loc))
		row, ok := buckets[day]
		if !ok {
			row = &DaySummary{Date: day}
			buckets[day] = row
			seen[day] = map[contract.Source]bool{}
		}
		row.Total++
		if ev.AllDay() {
			row.AllDay++
		} else {
			row.Timed++
		}
		if !seen[day][ev.Source] {
			seen[day][ev.Source] = true
			row.Sources = append(row.Sources, ev.Source)
		}
	}

	rows := make([]DaySummary, 0, 31)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := contract.DateOf(d)
		if row, ok := buckets[key]; ok {
			sort.Slice(row.Sources, func(i, j int) bool { return row.Sources[i] < row.Sources[j] })
			rows = append(rows, *row)
			continue
		}
		rows = append(rows, DaySummary{Date: key})
	}
	return rows
}
