package app

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/timeparse"
)

const icsProductID = "-//unical//unical//EN"

func newEventsExportCmd(opts *globalOptions) *cobra.Command {
	var monthS, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the merged month to ICS",
		RunE: func(c *cobra.Command, _ []string) error {
			s, err := buildContext(c, opts, "events.export")
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
			ics, exported, err := buildICS(view.Events, s.loc, nowFunc())
			if err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "", exitGeneric)
			}
			meta := map[string]any{"count": exported, "skipped": len(view.Events) - exported, "month": month.Format("2006-01")}
			if strings.TrimSpace(outPath) != "" {
				if err := os.WriteFile(outPath, []byte(ics), 0o644); err != nil {
					return failWithHint(s.printer, contract.ErrGeneric, err, "Check destination path permissions", exitGeneric)
				}
				return successWithMeta(ctx, s, map[string]any{"path": outPath, "events": exported}, meta, view.Warnings)
			}
			if m := s.printer.EffectiveSuccessMode(); m == output.ModeJSON || m == output.ModeJSONL {
				return successWithMeta(ctx, s, map[string]any{"ics": ics, "events": exported}, meta, view.Warnings)
			}
			s.printer.Warn(view.Warnings)
			_, _ = fmt.Fprint(c.OutOrStdout(), ics)
			return nil
		},
	}
	cmd.Flags().StringVar(&monthS, "month", "", "Month to export (YYYY-MM, next, prev)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")
	return cmd
}

// buildICS encodes events as one VCALENDAR. Events without a known start
// are left out; the second return value counts the ones written.
func buildICS(events []contract.Event, loc *time.Location, now time.Time) (string, int, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	written := 0
	for _, ev := range events {
		if !ev.Start.Known() {
			continue
		}
		vevent := ical.NewComponent(ical.CompEvent)
		vevent.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s.unical", ev.ID, ev.Source))
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		vevent.Props.SetText(ical.PropSummary, ev.Summary)
		if ev.Description != "" && ev.Description != contract.NoDescription {
			vevent.Props.SetText(ical.PropDescription, ev.Description)
		}
		if ev.Location != "" && ev.Location != contract.NoLocation {
			vevent.Props.SetText(ical.PropLocation, ev.Location)
		}
		if ev.Creator.DisplayName != "" {
			setICSExtension(vevent, "X-UNICAL-CREATOR", ev.Creator.DisplayName)
		}
		setICSExtension(vevent, "X-UNICAL-SOURCE", string(ev.Source))
		setICSBoundary(vevent, ical.PropDateTimeStart, ev.Start, loc)
		if ev.End.Known() {
			setICSBoundary(vevent, ical.PropDateTimeEnd, ev.End, loc)
		}
		cal.Children = append(cal.Children, vevent)
		written++
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", 0, fmt.Errorf("encode ics: %w", err)
	}
	return buf.String(), written, nil
}

// setICSExtension writes an escaped text value for an X- property without
// the VALUE=TEXT parameter SetText adds for names it does not know.
func setICSExtension(comp *ical.Component, name, text string) {
	prop := ical.NewProp(name)
	prop.SetText(text)
	prop.SetValueType(ical.ValueDefault)
	comp.Props.Set(prop)
}

func setICSBoundary(comp *ical.Component, name string, b contract.Boundary, loc *time.Location) {
	if b.Kind == contract.BoundaryAllDay {
		prop := ical.NewProp(name)
		prop.SetDate(b.Date.Midnight(loc))
		comp.Props.Set(prop)
		return
	}
	comp.Props.SetDateTime(name, b.Instant.UTC())
}
