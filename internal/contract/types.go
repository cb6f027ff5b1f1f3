package contract

import "time"

const SchemaVersion = "v1"

type ErrorCode string

const (
	ErrGeneric             ErrorCode = "GENERIC_FAILURE"
	ErrInvalidUsage        ErrorCode = "INVALID_USAGE"
	ErrAuthRequired        ErrorCode = "AUTH_REQUIRED"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
)

type ErrorEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Error         ErrorBody      `json:"error"`
	Meta          map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

type SuccessEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Data          any            `json:"data"`
	Meta          map[string]any `json:"meta"`
	Warnings      []string       `json:"warnings"`
}

// Source records which calendar provider an event came from. Deletes are
// routed by it, so it is never empty on a fetched event.
type Source string

const (
	SourceGoogle  Source = "google"
	SourceOutlook Source = "outlook"
)

func (s Source) Valid() bool {
	return s == SourceGoogle || s == SourceOutlook
}

const (
	NoDescription   = "No description provided"
	NoLocation      = "No location provided"
	PlaceholderIcon = "https://via.placeholder.com/32"
)

type Creator struct {
	DisplayName string `json:"display_name"`
	IconURL     string `json:"icon_url"`
}

// Event is the provider-agnostic event record every computation reads.
type Event struct {
	ID          string   `json:"id"`
	Source      Source   `json:"source"`
	Summary     string   `json:"summary"`
	Start       Boundary `json:"start"`
	End         Boundary `json:"end"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Creator     Creator  `json:"creator"`
}

func (e Event) AllDay() bool {
	return e.Start.Kind == BoundaryAllDay
}

type Slot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int64     `json:"minutes"`
}
