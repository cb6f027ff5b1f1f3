package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agis/unical/internal/contract"
)

// Window is a daily HH:MM-HH:MM range. EndHour may be 24 with EndMinute 0.
type Window struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}

func (w Window) bounds(day contract.Date, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(day.Year, day.Month, day.Day, w.StartHour, w.StartMinute, 0, 0, loc)
	end := time.Date(day.Year, day.Month, day.Day, w.EndHour, w.EndMinute, 0, 0, loc)
	return start, end
}

// Availability maps a weekday to the hours the user accepts meetings in.
type Availability map[time.Weekday]Window

func ParseWindow(v string) (Window, error) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("invalid window: %s", v)
	}
	aH, aM, err := parseClock(strings.TrimSpace(parts[0]), false)
	if err != nil {
		return Window{}, err
	}
	bH, bM, err := parseClock(strings.TrimSpace(parts[1]), true)
	if err != nil {
		return Window{}, err
	}
	if bH < aH || (bH == aH && bM <= aM) {
		return Window{}, fmt.Errorf("window end must be after start: %s", v)
	}
	return Window{StartHour: aH, StartMinute: aM, EndHour: bH, EndMinute: bM}, nil
}

// ParseAvailability reads weekday names (monday, mon, ...) to windows.
func ParseAvailability(raw map[string]string) (Availability, error) {
	out := Availability{}
	for k, v := range raw {
		wd, err := parseWeekday(k)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		w, err := ParseWindow(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[wd] = w
	}
	return out, nil
}

// WithinAvailability keeps slots that lie entirely inside their weekday's
// window. Weekdays with no window keep every slot.
func (e Engine) WithinAvailability(slots []contract.Slot, avail Availability) []contract.Slot {
	out := make([]contract.Slot, 0, len(slots))
	for _, s := range slots {
		local := s.Start.In(e.loc)
		w, ok := avail[local.Weekday()]
		if !ok {
			out = append(out, s)
			continue
		}
		from, to := w.bounds(contract.DateOf(local), e.loc)
		if s.Start.Before(from) || s.End.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func parseClock(s string, allowEndOfDay bool) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, 0, fmt.Errorf("invalid time: %s", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time: %s", s)
	}
	if hour == 24 && (!allowEndOfDay || minute != 0) {
		return 0, 0, fmt.Errorf("invalid time: %s", s)
	}
	return hour, minute, nil
}

func parseWeekday(v string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("invalid weekday: %s", v)
	}
}
