// Package export renders stored audit events into portable formats and
// ships them to files or object storage.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/groblegark/auditstore/internal/model"
	"github.com/groblegark/auditstore/internal/repository"
)

// Exporter renders events into one output format.
type Exporter interface {
	// Export writes the events to w. The event order is preserved.
	Export(w io.Writer, events []*model.Event) error
	// ContentType is the MIME type of the rendered output.
	ContentType() string
}

// ForFormat returns the exporter for a format name: "csv", "tsv",
// "json" or "ndjson".
func ForFormat(format string) (Exporter, error) {
	switch format {
	case "csv":
		return CSV{}, nil
	case "tsv":
		return TSV{}, nil
	case "json":
		return JSON{}, nil
	case "ndjson":
		return NDJSON{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// FromFilters collects the union of events matching any of the filters,
// deduplicated by ID and ordered by timestamp. An empty filter list
// exports the whole store.
func FromFilters(ctx context.Context, repo repository.Repository, filters []model.Filter) ([]*model.Event, error) {
	if len(filters) == 0 {
		filters = []model.Filter{{}}
	}

	seen := make(map[string]struct{})
	events := []*model.Event{}
	for _, filter := range filters {
		matched, err := repo.FilterEvents(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("collect events for export: %w", err)
		}
		for _, event := range matched {
			if _, ok := seen[event.ID]; ok {
				continue
			}
			seen[event.ID] = struct{}{}
			events = append(events, event)
		}
	}
	repository.SortByTimestamp(events)
	return events, nil
}
