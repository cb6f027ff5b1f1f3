package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/aggregate"
	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/schedule"
	"github.com/agis/unical/internal/timeparse"
)

// loadMonth opens the signed-in providers and loads month. release is
// never nil.
func (s *session) loadMonth(ctx context.Context, month time.Time) (*aggregate.Aggregator, aggregate.View, func(), error) {
	agg, release, err := s.aggregator(ctx)
	if err != nil {
		return nil, aggregate.View{}, func() {}, err
	}
	view, err := loadMonthWithTimeout(ctx, agg, month)
	if err != nil {
		return agg, aggregate.View{}, release, err
	}
	return agg, view, release, nil
}

func newMonthCmd(opts *globalOptions) *cobra.Command {
	var monthS string
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Show the merged month grid",
		RunE: func(c *cobra.Command, _ []string) error {
			s, err := buildContext(c, opts, "month")
			if err != nil {
				return err
			}
			month, err := timeparse.ParseMonth(monthS, nowFunc(), s.loc)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --month YYYY-MM, next or prev", exitUsage)
			}
			ctx, cancel := commandContext(s.opts)
			defer cancel()
			_, view, release, err := s.loadMonth(ctx, month)
			defer release()
			if err != nil {
				return failProvider(s, err)
			}
			grid := s.engine.MonthGrid(month, view.Events)
			if s.printer.EffectiveSuccessMode() == output.ModePlain && len(s.printer.Fields) == 0 {
				s.printer.Warn(view.Warnings)
				printMonthPlain(c.OutOrStdout(), grid)
				return nil
			}
			meta := map[string]any{
				"month":   month.Format("2006-01"),
				"count":   len(grid),
				"events":  len(view.Events),
				"sources": signedInSources(view),
			}
			return successWithMeta(ctx, s, grid, meta, view.Warnings)
		},
	}
	cmd.Flags().StringVar(&monthS, "month", "", "Month to show (YYYY-MM, next, prev)")
	return cmd
}

func newDayCmd(opts *globalOptions) *cobra.Command {
	var dayS string
	cmd := &cobra.Command{
		Use:   "day",
		Short: "List the merged events starting on one day",
		RunE: func(c *cobra.Command, _ []string) error {
			s, err := buildContext(c, opts, "day")
			if err != nil {
				return err
			}
			day, err := timeparse.ParseDay(dayS, nowFunc(), s.loc)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --day YYYY-MM-DD, today, tomorrow or +Nd", exitUsage)
			}
			ctx, cancel := commandContext(s.opts)
			defer cancel()
			_, view, release, err := s.loadMonth(ctx, day.Midnight(s.loc))
			defer release()
			if err != nil {
				return failProvider(s, err)
			}
			events := s.engine.FilterForDay(view.Events, day)
			if s.printer.EffectiveSuccessMode() == output.ModePlain && len(s.printer.Fields) == 0 {
				s.printer.Warn(view.Warnings)
				printEventsPlain(c.OutOrStdout(), events, s.loc)
				return nil
			}
			meta := map[string]any{"day": day.String(), "count": len(events)}
			return successWithMeta(ctx, s, events, meta, view.Warnings)
		},
	}
	cmd.Flags().StringVar(&dayS, "day", "today", "Day to show")
	return cmd
}

func signedInSources(view aggregate.View) []contract.Source {
	out := []contract.Source{}
	for _, src := range allSources {
		if _, ok := view.Timings[src]; ok {
			if view.Failures[src] == nil {
				out = append(out, src)
			}
		}
	}
	return out
}

func printMonthPlain(out io.Writer, grid []schedule.DaySummary) {
	for _, d := range grid {
		if d.Total == 0 {
			_, _ = fmt.Fprintf(out, "%s %s  -\n", d.Date, d.Date.Weekday().String()[:3])
			continue
		}
		sources := make([]string, 0, len(d.Sources))
		for _, src := range d.Sources {
			sources = append(sources, string(src))
		}
		_, _ = fmt.Fprintf(out, "%s %s  %d %s  %s\n", d.Date, d.Date.Weekday().String()[:3], d.Total, plural(d.Total, "event", "events"), strings.Join(sources, ","))
	}
}

func printEventsPlain(out io.Writer, events []contract.Event, loc *time.Location) {
	if len(events) == 0 {
		_, _ = fmt.Fprintln(out, "no events")
		return
	}
	for _, ev := range events {
		_, _ = fmt.Fprintf(out, "%-11s  %-7s  %s\n", eventTimeLabel(ev, loc), ev.Source, ev.Summary)
	}
}

func eventTimeLabel(ev contract.Event, loc *time.Location) string {
	if ev.AllDay() {
		return "all day"
	}
	start, ok := ev.Start.Resolve(loc)
	if !ok {
		return "--:--"
	}
	label := start.In(loc).Format("15:04")
	if end, ok := ev.End.Resolve(loc); ok {
		label += "–" + end.In(loc).Format("15:04")
	}
	return label
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
