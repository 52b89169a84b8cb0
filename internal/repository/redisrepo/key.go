package redisrepo

import (
	"strings"

	"github.com/groblegark/auditstore/internal/model"
)

// Composite key segments appear in this fixed order so that wildcard
// patterns can anchor on position.
var keyFields = []string{
	"id", "category", "action", "actor",
	"action_object", "action_object_id", "target_type", "target_id",
}

// escapeField percent-encodes the characters that are meaningful to the
// composite key layout ("|", ":") or to Redis glob patterns. The same
// encoding is applied when building keys and patterns, so encoded keys
// match encoded patterns byte for byte and a field value containing a
// delimiter can never bleed into a neighboring segment.
var escapeField = strings.NewReplacer(
	"%", "%25",
	"|", "%7C",
	":", "%3A",
	"*", "%2A",
	"?", "%3F",
	"[", "%5B",
	"]", "%5D",
	"\\", "%5C",
).Replace

// compositeKey packs every correlation field plus the timestamp into the
// hash field under which the serialized event is stored.
func compositeKey(e *model.Event) string {
	values := [...]string{
		e.ID, e.Category, e.Action, e.Actor,
		e.ActionObject, e.ActionObjectID, e.TargetType, e.TargetID,
	}
	var b strings.Builder
	for i, field := range keyFields {
		b.WriteString(field)
		b.WriteByte(':')
		b.WriteString(escapeField(values[i]))
		b.WriteByte('|')
	}
	b.WriteString("ts:")
	b.WriteString(escapeField(e.Timestamp))
	return b.String()
}

// scanPattern builds the HSCAN glob for a filter: present fields become
// literal segments, absent ones wildcards. Time bounds have no pattern
// form and are post-filtered by the caller.
func scanPattern(f model.Filter) string {
	values := [...]string{
		f.ID, f.Category, f.Action, f.Actor,
		f.ActionObject, f.ActionObjectID, f.TargetType, f.TargetID,
	}
	var b strings.Builder
	for i, field := range keyFields {
		b.WriteString(field)
		b.WriteByte(':')
		if values[i] == "" {
			b.WriteByte('*')
		} else {
			b.WriteString(escapeField(values[i]))
		}
		b.WriteByte('|')
	}
	b.WriteString("ts:*")
	return b.String()
}

// idPattern matches exactly one event by ID, whatever its other fields.
func idPattern(id string) string {
	return "id:" + escapeField(id) + "|*"
}
