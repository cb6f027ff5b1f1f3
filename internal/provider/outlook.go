package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/agis/unical/internal/contract"
)

const (
	GraphBaseURL      = "https://graph.microsoft.com/v1.0"
	graphDateTime     = "2006-01-02T15:04:05.9999999"
	graphWriteLayout  = "2006-01-02T15:04:05"
	graphPreferHeader = `outlook.timezone="UTC"`
)

type Outlook struct {
	client  *http.Client
	baseURL string
	newTxID func() string
}

func NewOutlook(client *http.Client, baseURL string) *Outlook {
	return &Outlook{
		client:  client,
		baseURL: strings.TrimRight(orDefault(baseURL, GraphBaseURL), "/"),
		newTxID: uuid.NewString,
	}
}

func (o *Outlook) Source() contract.Source { return contract.SourceOutlook }

type graphDateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID          string            `json:"id,omitempty"`
	Subject     string            `json:"subject"`
	BodyPreview string            `json:"bodyPreview,omitempty"`
	Body        *graphBody        `json:"body,omitempty"`
	Start       graphDateTimeZone `json:"start"`
	End         graphDateTimeZone `json:"end"`
	IsAllDay    bool              `json:"isAllDay"`
	Location    struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Organizer *struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"organizer,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

func (o *Outlook) FetchMonth(ctx context.Context, monthStart time.Time) ([]contract.Event, error) {
	from, to := monthWindow(monthStart)
	params := url.Values{}
	params.Set("startDateTime", from.UTC().Format(time.RFC3339))
	params.Set("endDateTime", to.UTC().Format(time.RFC3339))
	next := o.baseURL + "/me/calendarView?" + params.Encode()

	out := []contract.Event{}
	for next != "" {
		var page struct {
			Value    []graphEvent `json:"value"`
			NextLink string       `json:"@odata.nextLink"`
		}
		if err := o.do(ctx, http.MethodGet, next, nil, http.StatusOK, &page); err != nil {
			return nil, fmt.Errorf("failed to list outlook events: %w", err)
		}
		for _, ge := range page.Value {
			out = append(out, graphToEvent(ge))
		}
		next = page.NextLink
	}
	return out, nil
}

func (o *Outlook) AddEvent(ctx context.Context, in EventInput) (*contract.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	body := graphEvent{
		Subject:       in.Title,
		IsAllDay:      in.AllDay,
		TransactionID: o.newTxID(),
	}
	if in.Description != "" {
		body.Body = &graphBody{ContentType: "text", Content: in.Description}
	}
	body.Location.DisplayName = in.Location
	if in.AllDay {
		body.Start = graphDateTimeZone{DateTime: contract.DateOf(in.Start).String() + "T00:00:00", TimeZone: "UTC"}
		body.End = graphDateTimeZone{DateTime: contract.DateOf(in.End).String() + "T00:00:00", TimeZone: "UTC"}
	} else {
		body.Start = graphDateTimeZone{DateTime: in.Start.UTC().Format(graphWriteLayout), TimeZone: "UTC"}
		body.End = graphDateTimeZone{DateTime: in.End.UTC().Format(graphWriteLayout), TimeZone: "UTC"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outlook event: %w", err)
	}

	var created graphEvent
	if err := o.do(ctx, http.MethodPost, o.baseURL+"/me/events", payload, http.StatusCreated, &created); err != nil {
		return nil, fmt.Errorf("failed to create outlook event: %w", err)
	}
	ev := graphToEvent(created)
	return &ev, nil
}

func (o *Outlook) DeleteEvent(ctx context.Context, id string) error {
	err := o.do(ctx, http.MethodDelete, o.baseURL+"/me/events/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
	if err != nil {
		var se *graphStatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return fmt.Errorf("outlook event %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete outlook event: %w", err)
	}
	return nil
}

type graphStatusError struct {
	Method string
	Status int
	Body   string
}

func (e *graphStatusError) Error() string {
	msg := fmt.Sprintf("graph %s returned status %d", e.Method, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (o *Outlook) do(ctx context.Context, method, endpoint string, payload []byte, want int, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Prefer", graphPreferHeader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &graphStatusError{Method: method, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func graphToEvent(ge graphEvent) contract.Event {
	ev := contract.Event{
		ID:          ge.ID,
		Source:      contract.SourceOutlook,
		Summary:     ge.Subject,
		Start:       graphBoundary(ge.Start, ge.IsAllDay),
		End:         graphBoundary(ge.End, ge.IsAllDay),
		Description: orDefault(ge.BodyPreview, contract.NoDescription),
		Location:    orDefault(ge.Location.DisplayName, contract.NoLocation),
		Creator:     contract.Creator{DisplayName: "Unknown", IconURL: OutlookIcon},
	}
	if ge.Organizer != nil {
		ev.Creator.DisplayName = orDefault(ge.Organizer.EmailAddress.Name, "Unknown")
	}
	return ev
}

func graphBoundary(v graphDateTimeZone, allDay bool) contract.Boundary {
	if v.DateTime == "" {
		return contract.Unknown()
	}
	if allDay {
		datePart, _, _ := strings.Cut(v.DateTime, "T")
		if d, err := contract.ParseDate(datePart); err == nil {
			return contract.AllDay(d)
		}
		return contract.Unknown()
	}
	loc := time.UTC
	if v.TimeZone != "" && v.TimeZone != "UTC" {
		if l, err := time.LoadLocation(v.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphDateTime, v.DateTime, loc)
	if err != nil {
		return contract.Unknown()
	}
	return contract.Timed(t)
}
