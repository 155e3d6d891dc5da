package trace

import (
	"time"
)

// ObservationType represents the type of an observation within a trace.
type ObservationType string

const (
	ObservationTypeSpan       ObservationType = "SPAN"
	ObservationTypeGeneration ObservationType = "GENERATION"
	ObservationTypeEvent      ObservationType = "EVENT"
)

// ObservationLevel represents the severity level of an observation.
type ObservationLevel string

const (
	ObservationLevelDebug   ObservationLevel = "DEBUG"
	ObservationLevelDefault ObservationLevel = "DEFAULT"
	ObservationLevelWarning ObservationLevel = "WARNING"
	ObservationLevelError   ObservationLevel = "ERROR"
)

// Trace holds the fields shared by every trace representation returned by the API.
type Trace struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Name        *string   `json:"name,omitempty"`
	Input       any       `json:"input,omitempty"`
	Output      any       `json:"output,omitempty"`
	SessionID   *string   `json:"sessionId,omitempty"`
	Release     *string   `json:"release,omitempty"`
	Version     *string   `json:"version,omitempty"`
	UserID      *string   `json:"userId,omitempty"`
	Metadata    any       `json:"metadata,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Public      *bool     `json:"public,omitempty"`
	Environment *string   `json:"environment,omitempty"`
}

// Summary is a trace as it appears in a listing. Observations and scores are
// referenced by ID only.
type Summary struct {
	Trace

	HTMLPath     string   `json:"htmlPath"`
	Latency      float64  `json:"latency"`
	TotalCost    float64  `json:"totalCost"`
	Observations []string `json:"observations"`
	Scores       []string `json:"scores"`
}

// Detail is a single trace with its observations and scores expanded.
type Detail struct {
	Trace

	HTMLPath     string        `json:"htmlPath"`
	Latency      float64       `json:"latency"`
	TotalCost    float64       `json:"totalCost"`
	Observations []Observation `json:"observations"`
	Scores       []Score       `json:"scores"`
}

// Observation is a span, generation or event recorded under a trace.
// Only the fields needed to display and export a trace are decoded.
type Observation struct {
	ID                  string           `json:"id"`
	TraceID             *string          `json:"traceId,omitempty"`
	Type                ObservationType  `json:"type"`
	Name                *string          `json:"name,omitempty"`
	StartTime           time.Time        `json:"startTime"`
	EndTime             *time.Time       `json:"endTime,omitempty"`
	ParentObservationID *string          `json:"parentObservationId,omitempty"`
	Level               ObservationLevel `json:"level,omitempty"`
	StatusMessage       *string          `json:"statusMessage,omitempty"`
	Model               *string          `json:"model,omitempty"`
	Input               any              `json:"input,omitempty"`
	Output              any              `json:"output,omitempty"`
	Metadata            any              `json:"metadata,omitempty"`
}

// Score is an evaluation attached to a trace or one of its observations.
type Score struct {
	ID            string    `json:"id"`
	TraceID       string    `json:"traceId"`
	Name          string    `json:"name"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	DataType      string    `json:"dataType,omitempty"`
	Value         *float64  `json:"value,omitempty"`
	StringValue   *string   `json:"stringValue,omitempty"`
	ObservationID *string   `json:"observationId,omitempty"`
	Comment       *string   `json:"comment,omitempty"`
}

// Meta is the pagination envelope of a listing.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of a trace listing.
type Page struct {
	Data []Summary `json:"data"`
	Meta Meta      `json:"meta"`
}
