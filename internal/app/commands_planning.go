package app

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/schedule"
	"github.com/agis/unical/internal/timeparse"
)

type slotRow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int64     `json:"minutes"`
	Label   string    `json:"label"`
}

func newSlotsCmd(opts *globalOptions) *cobra.Command {
	var dayS string
	var granularity int
	var ignoreAllDay, withinAvailability bool
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free slots of a day across every signed-in calendar",
		RunE: func(c *cobra.Command, _ []string) error {
			s, err := buildContext(c, opts, "slots")
			if err != nil {
				return err
			}
			minutes := s.opts.Granularity
			if c.Flags().Changed("granularity") {
				minutes = granularity
			}
			step, err := schedule.ParseGranularity(minutes)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --granularity 15, 30 or 60", exitUsage)
			}
			day, err := timeparse.ParseDay(dayS, nowFunc(), s.loc)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --day YYYY-MM-DD, today, tomorrow or +Nd", exitUsage)
			}
			var avail schedule.Availability
			if withinAvailability {
				avail, err = schedule.ParseAvailability(s.opts.Availability)
				if err != nil {
					return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Fix [availability] in config.toml, e.g. monday = \"09:00-17:00\"", exitUsage)
				}
			}

			ctx, cancel := commandContext(s.opts)
			defer cancel()
			_, view, release, err := s.loadMonth(ctx, day.Midnight(s.loc))
			defer release()
			if err != nil {
				return failProvider(s, err)
			}

			events := s.engine.FilterForDay(view.Events, day)
			if ignoreAllDay {
				events = withoutAllDay(events)
			}
			slots := s.engine.ComputeSlots(day, step, events)
			if withinAvailability {
				slots = s.engine.WithinAvailability(slots, avail)
			}
			rows := make([]slotRow, 0, len(slots))
			for _, sl := range slots {
				rows = append(rows, slotRow{
					Start:   sl.Start,
					End:     sl.End,
					Minutes: sl.Minutes,
					Label:   schedule.FormatSlot(sl, s.loc),
				})
			}
			s.logger.Debug("slots", "day", day.String(), "busy_events", len(events), "free", len(rows))

			if s.printer.EffectiveSuccessMode() == output.ModePlain && len(s.printer.Fields) == 0 {
				s.printer.Warn(view.Warnings)
				printSlotsPlain(c.OutOrStdout(), rows)
				return nil
			}
			meta := map[string]any{
				"day":                 day.String(),
				"granularity_minutes": minutes,
				"count":               len(rows),
				"busy_events":         len(events),
				"ignore_all_day":      ignoreAllDay,
				"within_availability": withinAvailability,
			}
			return successWithMeta(ctx, s, rows, meta, view.Warnings)
		},
	}
	cmd.Flags().StringVar(&dayS, "day", "today", "Day to plan")
	cmd.Flags().IntVar(&granularity, "granularity", 30, "Slot length in minutes (15, 30 or 60)")
	cmd.Flags().BoolVar(&ignoreAllDay, "ignore-all-day", false, "Do not treat all-day events as busy")
	cmd.Flags().BoolVar(&withinAvailability, "within-availability", false, "Keep only slots inside the configured [availability] windows")
	return cmd
}

func withoutAllDay(events []contract.Event) []contract.Event {
	out := make([]contract.Event, 0, len(events))
	for _, ev := range events {
		if !ev.AllDay() {
			out = append(out, ev)
		}
	}
	return out
}

func printSlotsPlain(out io.Writer, rows []slotRow) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, "no free slots")
		return
	}
	for _, r := range rows {
		_, _ = fmt.Fprintln(out, r.Label)
	}
}
