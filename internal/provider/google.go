package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/agis/unical/internal/contract"
)

const DefaultGoogleCalendarID = "primary"

type Google struct {
	service    *calendar.Service
	calendarID string
}

// NewGoogle builds the adapter over an authorized client. Extra options are
// appended after the client, which lets tests point it at a local endpoint.
func NewGoogle(ctx context.Context, client *http.Client, calendarID string, opts ...option.ClientOption) (*Google, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Google{service: service, calendarID: orDefault(calendarID, DefaultGoogleCalendarID)}, nil
}

func (g *Google) Source() contract.Source { return contract.SourceGoogle }

func (g *Google) FetchMonth(ctx context.Context, monthStart time.Time) ([]contract.Event, error) {
	from, to := monthWindow(monthStart)
	call := g.service.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	out := []contract.Event{}
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			out = append(out, googleToEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list google events: %w", err)
	}
	return out, nil
}

func (g *Google) AddEvent(ctx context.Context, in EventInput) (*contract.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	item := &calendar.Event{
		Summary:     in.Title,
		Description: in.Description,
		Location:    in.Location,
	}
	if in.AllDay {
		item.Start = &calendar.EventDateTime{Date: contract.DateOf(in.Start).String()}
		item.End = &calendar.EventDateTime{Date: contract.DateOf(in.End).String()}
	} else {
		item.Start = googleDateTime(in.Start)
		item.End = googleDateTime(in.End)
	}
	created, err := g.service.Events.Insert(g.calendarID, item).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create google event: %w", err)
	}
	ev := googleToEvent(created)
	return &ev, nil
}

// googleDateTime sends the IANA zone of t alongside the offset. The process
// local zone has no portable name, so only the offset is sent for it.
func googleDateTime(t time.Time) *calendar.EventDateTime {
	dt := &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if name := t.Location().String(); name != "Local" {
		dt.TimeZone = name
	}
	return dt
}

func (g *Google) DeleteEvent(ctx context.Context, id string) error {
	err := g.service.Events.Delete(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			return fmt.Errorf("google event %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete google event: %w", err)
	}
	return nil
}

func googleToEvent(item *calendar.Event) contract.Event {
	ev := contract.Event{
		ID:          item.Id,
		Source:      contract.SourceGoogle,
		Summary:     item.Summary,
		Start:       googleBoundary(item.Start),
		End:         googleBoundary(item.End),
		Description: orDefault(item.Description, contract.NoDescription),
		Location:    orDefault(item.Location, contract.NoLocation),
		Creator:     contract.Creator{DisplayName: "Unknown", IconURL: GoogleIcon},
	}
	if item.Creator != nil {
		ev.Creator.DisplayName = orDefault(item.Creator.DisplayName, orDefault(item.Creator.Email, "Unknown"))
	}
	return ev
}

func googleBoundary(dt *calendar.EventDateTime) contract.Boundary {
	if dt == nil {
		return contract.Unknown()
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return contract.Timed(t)
		}
	}
	if dt.Date != "" {
		if d, err := contract.ParseDate(dt.Date); err == nil {
			return contract.AllDay(d)
		}
	}
	return contract.Unknown()
}
