package model

import (
	"strings"
	"time"
)

// Filter selects a subset of events. All fields are optional and combine
// conjunctively: an event matches only when it satisfies every non-empty
// field. Time bounds are inclusive at both ends.
type Filter struct {
	ID             string `json:"id,omitempty"`
	Category       string `json:"category,omitempty"`
	Action         string `json:"action,omitempty"`
	Actor          string `json:"actor,omitempty"`
	ActionObject   string `json:"action_object,omitempty"`
	ActionObjectID string `json:"action_object_id,omitempty"`
	TargetType     string `json:"target_type,omitempty"`
	TargetID       string `json:"target_id,omitempty"`

	TimeFrom *time.Time `json:"time_from,omitempty"`
	TimeTo   *time.Time `json:"time_to,omitempty"`
}

// NewFilter normalizes and validates a filter: string fields are trimmed
// of surrounding whitespace and an inverted time range is rejected.
func NewFilter(f Filter) (Filter, error) {
	f.ID = strings.TrimSpace(f.ID)
	f.Category = strings.TrimSpace(f.Category)
	f.Action = strings.TrimSpace(f.Action)
	f.Actor = strings.TrimSpace(f.Actor)
	f.ActionObject = strings.TrimSpace(f.ActionObject)
	f.ActionObjectID = strings.TrimSpace(f.ActionObjectID)
	f.TargetType = strings.TrimSpace(f.TargetType)
	f.TargetID = strings.TrimSpace(f.TargetID)

	if f.TimeFrom != nil && f.TimeTo != nil && f.TimeFrom.After(*f.TimeTo) {
		return Filter{}, &ValidationError{Field: "time_from", Message: "must not be later than time_to"}
	}
	return f, nil
}

// IsEmpty reports whether no field constrains the result set.
func (f Filter) IsEmpty() bool {
	return f.ID == "" && f.Category == "" && f.Action == "" && f.Actor == "" &&
		f.ActionObject == "" && f.ActionObjectID == "" && f.TargetType == "" &&
		f.TargetID == "" && f.TimeFrom == nil && f.TimeTo == nil
}

// FieldConditions returns the non-empty string-field constraints as
// (field name, value) pairs in the canonical field order. Backends use
// this to translate the filter into their native query form.
func (f Filter) FieldConditions() []FieldCondition {
	var conds []FieldCondition
	for _, fc := range []FieldCondition{
		{"id", f.ID},
		{"category", f.Category},
		{"action", f.Action},
		{"actor", f.Actor},
		{"action_object", f.ActionObject},
		{"action_object_id", f.ActionObjectID},
		{"target_type", f.TargetType},
		{"target_id", f.TargetID},
	} {
		if fc.Value != "" {
			conds = append(conds, fc)
		}
	}
	return conds
}

// FieldCondition is one equality constraint extracted from a Filter.
type FieldCondition struct {
	Field string
	Value string
}

// Matches reports whether the event satisfies every constraint of the
// filter. Backends with a native predicate push the work down; scan-based
// backends use this as the reference semantics for post-filtering.
func (f Filter) Matches(e *Event) bool {
	for _, cond := range f.FieldConditions() {
		var got string
		switch cond.Field {
		case "id":
			got = e.ID
		case "category":
			got = e.Category
		case "action":
			got = e.Action
		case "actor":
			got = e.Actor
		case "action_object":
			got = e.ActionObject
		case "action_object_id":
			got = e.ActionObjectID
		case "target_type":
			got = e.TargetType
		case "target_id":
			got = e.TargetID
		}
		if got != cond.Value {
			return false
		}
	}
	if f.TimeFrom == nil && f.TimeTo == nil {
		return true
	}
	ts, err := e.Time()
	if err != nil {
		return false
	}
	if f.TimeFrom != nil && ts.Before(*f.TimeFrom) {
		return false
	}
	if f.TimeTo != nil && ts.After(*f.TimeTo) {
		return false
	}
	return true
}
