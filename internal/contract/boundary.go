package contract

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar day without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Midnight returns 00:00 of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Weekday() time.Weekday {
	return d.Midnight(time.UTC).Weekday()
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

type BoundaryKind string

const (
	BoundaryUnknown BoundaryKind = "unknown"
	BoundaryTimed   BoundaryKind = "timed"
	BoundaryAllDay  BoundaryKind = "all_day"
)

// Boundary is one end of an event: a precise instant, a whole-day date, or
// unknown when the provider supplied neither.
type Boundary struct {
	Kind    BoundaryKind
	Instant time.Time
	Date    Date
}

func Timed(t time.Time) Boundary { return Boundary{Kind: BoundaryTimed, Instant: t} }

func AllDay(d Date) Boundary { return Boundary{Kind: BoundaryAllDay, Date: d} }

func Unknown() Boundary { return Boundary{Kind: BoundaryUnknown} }

func (b Boundary) Known() bool {
	return b.Kind == BoundaryTimed || b.Kind == BoundaryAllDay
}

// Resolve maps the boundary to an instant. All-day dates resolve to midnight
// in loc; unknown boundaries report ok=false.
func (b Boundary) Resolve(loc *time.Location) (time.Time, bool) {
	switch b.Kind {
	case BoundaryTimed:
		return b.Instant, true
	case BoundaryAllDay:
		return b.Date.Midnight(loc), true
	default:
		return time.Time{}, false
	}
}

type boundaryJSON struct {
	Kind     BoundaryKind `json:"kind"`
	DateTime *time.Time   `json:"date_time,omitempty"`
	Date     *Date        `json:"date,omitempty"`
}

func (b Boundary) MarshalJSON() ([]byte, error) {
	out := boundaryJSON{Kind: b.Kind}
	switch b.Kind {
	case BoundaryTimed:
		t := b.Instant
		out.DateTime = &t
	case BoundaryAllDay:
		d := b.Date
		out.Date = &d
	default:
		out.Kind = BoundaryUnknown
	}
	return json.Marshal(out)
}

func (b *Boundary) UnmarshalJSON(raw []byte) error {
	var in boundaryJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	switch {
	case in.DateTime != nil:
		*b = Timed(*in.DateTime)
	case in.Date != nil:
		*b = AllDay(*in.Date)
	default:
		*b = Unknown()
	}
	return nil
}
