package postgresrepo

import (
	"encoding/json"
	"time"

	"github.com/groblegark/auditstore/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		ts      time.Time
		result  []byte
		payload []byte
	)

	err := row.Scan(
		&e.ID,
		&e.Category,
		&e.Action,
		&e.Actor,
		&e.ActionObject,
		&e.ActionObjectID,
		&e.TargetType,
		&e.TargetID,
		&ts,
		&result,
		&payload,
	)
	if err != nil {
		return nil, err
	}

	e.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	if e.Result, err = mapFromJSONB(result); err != nil {
		return nil, err
	}
	if e.Payload, err = mapFromJSONB(payload); err != nil {
		return nil, err
	}
	return &e, nil
}

// jsonbMap converts a sanitized map to JSONB bytes; nil maps become `{}`.
// Sanitized maps only hold JSON-native values, so marshaling cannot fail.
func jsonbMap(m map[string]any) []byte {
	if m == nil {
		return []byte("{}")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func mapFromJSONB(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
