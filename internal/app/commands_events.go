package app

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/aggregate"
	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/provider"
	"github.com/agis/unical/internal/timeparse"
)

func newEventsCmd(opts *globalOptions) *cobra.Command {
	events := &cobra.Command{Use: "events", Short: "Event resources across providers"}

	var listMonth, listSource string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the merged events of a month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := buildContext(cmd, opts, "events.list")
			if err != nil {
				return err
			}
			month, err := timeparse.ParseMonth(listMonth, nowFunc(), s.loc)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --month YYYY-MM, next or prev", exitUsage)
			}
			var only contract.Source
			if strings.TrimSpace(listSource) != "" {
				if only, err = parseSource(listSource); err != nil {
					return failWithHint(s.printer, contract.ErrInvalidUsage, err, "", exitUsage)
				}
			}
			ctx, cancel := commandContext(s.opts)
			defer cancel()
			_, view, release, err := s.loadMonth(ctx, month)
			defer release()
			if err != nil {
				return failProvider(s, err)
			}
			items := view.Events
			if only != "" {
				items = filterSource(items, only)
			}
			if s.printer.EffectiveSuccessMode() == output.ModePlain && len(s.printer.Fields) == 0 {
				s.printer.Warn(view.Warnings)
				printEventsPlain(cmd.OutOrStdout(), items, s.loc)
				return nil
			}
			return successWithMeta(ctx, s, items, map[string]any{"count": len(items), "month": month.Format("2006-01")}, view.Warnings)
		},
	}
	list.Flags().StringVar(&listMonth, "month", "", "Month to list (YYYY-MM, next, prev)")
	list.Flags().StringVar(&listSource, "source", "", "Only events from google or outlook")

	var addSource, addTitle, addDay, addStart, addEnd, addLocation, addDescription string
	var addAllDay bool
	var addDays int
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an event with one provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := buildContext(cmd, opts, "events.add")
			if err != nil {
				return err
			}
			source, err := parseSource(addSource)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Pass --source google or --source outlook", exitUsage)
			}
			in, err := buildEventInput(s, addTitle, addDay, addStart, addEnd, addAllDay, addDays)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --title with --start/--end HH:MM, or --all-day", exitUsage)
			}
			in.Location = addLocation
			in.Description = addDescription

			ctx, cancel := commandContext(s.opts)
			defer cancel()
			agg, release, err := s.aggregator(ctx)
			if err != nil {
				return failProvider(s, err)
			}
			defer release()
			agg.Focus(in.Start)
			created, view, err := addEventWithTimeout(ctx, agg, source, in)
			warnings := view.Warnings
			if errors.Is(err, aggregate.ErrRefresh) && created != nil {
				warnings = append(warnings, err.Error())
			} else if err != nil {
				return failProvider(s, err)
			}
			return successWithMeta(ctx, s, created, map[string]any{"count": 1, "month_events": len(view.Events)}, warnings)
		},
	}
	add.Flags().StringVar(&addSource, "source", "", "Provider to create the event with (google|outlook)")
	add.Flags().StringVar(&addTitle, "title", "", "Event title")
	add.Flags().StringVar(&addDay, "day", "today", "Event day")
	add.Flags().StringVar(&addStart, "start", "09:00", "Start time HH:MM")
	add.Flags().StringVar(&addEnd, "end", "17:00", "End time HH:MM")
	add.Flags().BoolVar(&addAllDay, "all-day", false, "All-day event")
	add.Flags().IntVar(&addDays, "days", 1, "Length of an all-day event in days")
	add.Flags().StringVar(&addLocation, "location", "", "Location")
	add.Flags().StringVar(&addDescription, "description", "", "Description")

	var delSource, delConfirm, delMonth string
	var delForce bool
	deleteCmd := &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Delete an event from the provider that owns it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildContext(cmd, opts, "events.delete")
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			source, err := parseSource(delSource)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Pass --source google or --source outlook", exitUsage)
			}
			month, err := timeparse.ParseMonth(delMonth, nowFunc(), s.loc)
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --month YYYY-MM, next or prev", exitUsage)
			}
			if !delForce && delConfirm != id {
				if s.opts.NoInput || !stdinInteractive() {
					err = errors.New("non-interactive delete requires --force or --confirm <event-id>")
					return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Add --confirm exactly matching the event ID", exitUsage)
				}
				ok, promptErr := promptConfirmID(os.Stdin, cmd.ErrOrStderr(), id)
				if promptErr != nil {
					return failWithHint(s.printer, contract.ErrInvalidUsage, promptErr, "Use --force or --confirm <event-id> in non-interactive mode", exitUsage)
				}
				if !ok {
					err = errors.New("delete confirmation mismatch")
					return failWithHint(s.printer, contract.ErrInvalidUsage, err, "Use --force, or retry and enter the exact event ID", exitUsage)
				}
			}

			ctx, cancel := commandContext(s.opts)
			defer cancel()
			agg, release, err := s.aggregator(ctx)
			if err != nil {
				return failProvider(s, err)
			}
			defer release()
			agg.Focus(month)
			view, err := deleteEventWithTimeout(ctx, agg, id, source)
			warnings := view.Warnings
			if errors.Is(err, aggregate.ErrRefresh) {
				warnings = append(warnings, err.Error())
			} else if err != nil {
				return failProvider(s, err)
			}
			return successWithMeta(ctx, s, map[string]any{"deleted": true, "id": id, "source": source}, map[string]any{"count": 1, "month": month.Format("2006-01"), "month_events": len(view.Events)}, warnings)
		},
	}
	deleteCmd.Flags().StringVar(&delMonth, "month", "", "Month to reload after the delete (YYYY-MM, next, prev; default current)")
	deleteCmd.Flags().StringVar(&delSource, "source", "", "Provider that owns the event (google|outlook)")
	deleteCmd.Flags().BoolVarP(&delForce, "force", "f", false, "Force delete without confirmation")
	deleteCmd.Flags().StringVar(&delConfirm, "confirm", "", "Confirm exact event ID")

	events.AddCommand(list, add, deleteCmd, newEventsExportCmd(opts))
	return events
}

// buildEventInput turns add flags into a provider request. Timed events
// default to 09:00-17:00 on the chosen day.
func buildEventInput(s *session, title, dayS, startS, endS string, allDay bool, days int) (provider.EventInput, error) {
	day, err := timeparse.ParseDay(dayS, nowFunc(), s.loc)
	if err != nil {
		return provider.EventInput{}, err
	}
	in := provider.EventInput{Title: strings.TrimSpace(title), AllDay: allDay}
	if allDay {
		if days < 1 {
			return provider.EventInput{}, errors.New("--days must be at least 1")
		}
		in.Start = day.Midnight(s.loc)
		in.End = day.AddDays(days).Midnight(s.loc)
	} else {
		if in.Start, err = timeparse.ParseClock(startS, day, s.loc); err != nil {
			return provider.EventInput{}, err
		}
		if in.End, err = timeparse.ParseClock(endS, day, s.loc); err != nil {
			return provider.EventInput{}, err
		}
	}
	if err := in.Validate(); err != nil {
		return provider.EventInput{}, err
	}
	return in, nil
}

func filterSource(events []contract.Event, source contract.Source) []contract.Event {
	out := make([]contract.Event, 0, len(events))
	for _, ev := range events {
		if ev.Source == source {
			out = append(out, ev)
		}
	}
	return out
}
