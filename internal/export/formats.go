package export

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/groblegark/auditstore/internal/model"
)

// tabularHeader is the column order shared by the CSV and TSV formats.
// Result and payload are JSON-encoded into their cells.
var tabularHeader = []string{
	"id", "category", "action", "actor", "action_object",
	"action_object_id", "target_type", "target_id", "timestamp",
	"result", "payload",
}

func tabularRow(e *model.Event) ([]string, error) {
	result, err := json.Marshal(e.Result)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return []string{
		e.ID, e.Category, e.Action, e.Actor, e.ActionObject,
		e.ActionObjectID, e.TargetType, e.TargetID, e.Timestamp,
		string(result), string(payload),
	}, nil
}

func writeTabular(w io.Writer, events []*model.Event, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(tabularHeader); err != nil {
		return err
	}
	for _, event := range events {
		row, err := tabularRow(event)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders comma-separated rows with a header line.
type CSV struct{}

func (CSV) Export(w io.Writer, events []*model.Event) error {
	return writeTabular(w, events, ',')
}

func (CSV) ContentType() string { return "text/csv" }

// TSV renders tab-separated rows with a header line.
type TSV struct{}

func (TSV) Export(w io.Writer, events []*model.Event) error {
	return writeTabular(w, events, '\t')
}

func (TSV) ContentType() string { return "text/tab-separated-values" }

// JSON renders one indented JSON array.
type JSON struct{}

func (JSON) Export(w io.Writer, events []*model.Event) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func (JSON) ContentType() string { return "application/json" }

// NDJSON renders one JSON object per line, suitable for streaming
// ingestion.
type NDJSON struct{}

func (NDJSON) Export(w io.Writer, events []*model.Event) error {
	enc := json.NewEncoder(w)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func (NDJSON) ContentType() string { return "application/x-ndjson" }
