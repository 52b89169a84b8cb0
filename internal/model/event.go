package model

import (
	"strings"
	"time"

	"github.com/groblegark/auditstore/internal/idgen"
)

// PrivateKeyPrefix marks result/payload keys that must never reach storage.
// Producers use it for request-scoped scratch data (sessions, tokens).
const PrivateKeyPrefix = "_"

// Event is a single immutable audit record: who did what to what, when.
// Construct events with New (or a repository's BuildEvent); a zero-value
// Event is not valid.
type Event struct {
	ID             string         `json:"id"`
	Category       string         `json:"category"`
	Action         string         `json:"action"`
	Actor          string         `json:"actor"`
	ActionObject   string         `json:"action_object"`
	ActionObjectID string         `json:"action_object_id"`
	TargetType     string         `json:"target_type"`
	TargetID       string         `json:"target_id"`
	Timestamp      string         `json:"timestamp"`
	Result         map[string]any `json:"result"`
	Payload        map[string]any `json:"payload"`
}

// EventData is the partial field bag accepted by New. Empty fields are
// filled with defaults where one exists (ID, Timestamp, Result, Payload).
type EventData struct {
	ID             string         `json:"id,omitempty"`
	Category       string         `json:"category"`
	Action         string         `json:"action"`
	Actor          string         `json:"actor,omitempty"`
	ActionObject   string         `json:"action_object,omitempty"`
	ActionObjectID string         `json:"action_object_id,omitempty"`
	TargetType     string         `json:"target_type,omitempty"`
	TargetID       string         `json:"target_id,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Result         map[string]any `json:"result,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// New validates the given data and returns a complete Event.
// Category and action are required; the timestamp must parse as an
// instant and defaults to the current UTC time; the ID defaults to a
// generated opaque string. Result and payload maps are sanitized:
// private-prefixed keys are dropped and non-serializable values are
// coerced to strings.
func New(data EventData) (*Event, error) {
	if data.Category == "" {
		return nil, &ValidationError{Field: "category", Message: "must be a non-empty string"}
	}
	if data.Action == "" {
		return nil, &ValidationError{Field: "action", Message: "must be a non-empty string"}
	}

	id := data.ID
	if id == "" {
		generated, err := idgen.Generate()
		if err != nil {
			return nil, err
		}
		id = generated
	}

	ts := strings.TrimSpace(data.Timestamp)
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339Nano)
	} else if _, err := ParseTimestamp(ts); err != nil {
		return nil, &ValidationError{Field: "timestamp", Message: err.Error()}
	}

	return &Event{
		ID:             id,
		Category:       data.Category,
		Action:         data.Action,
		Actor:          data.Actor,
		ActionObject:   data.ActionObject,
		ActionObjectID: data.ActionObjectID,
		TargetType:     data.TargetType,
		TargetID:       data.TargetID,
		Timestamp:      ts,
		Result:         Sanitize(data.Result),
		Payload:        Sanitize(data.Payload),
	}, nil
}

// Time returns the event timestamp as a time.Time. Events built through
// New always carry a parseable timestamp, so the error path only fires
// for records deserialized from a corrupted store.
func (e *Event) Time() (time.Time, error) {
	return ParseTimestamp(e.Timestamp)
}

// timestampLayouts are accepted on input, most specific first. Events are
// always written back out in RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601-ish timestamp string. Layouts without
// an explicit zone are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// ValidationError reports a constraint violation on a single Event or
// Filter field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}
