package repository

import (
	"sort"

	"github.com/groblegark/auditstore/internal/model"
)

// SortByTimestamp orders events ascending by their timestamp. Scan-based
// backends return hits in unspecified order, so they sort before
// returning; ties and unparseable stamps fall back to lexical order,
// which keeps the sort stable for RFC 3339 strings.
func SortByTimestamp(events []*model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, errI := events[i].Time()
		tj, errJ := events[j].Time()
		if errI != nil || errJ != nil {
			return events[i].Timestamp < events[j].Timestamp
		}
		return ti.Before(tj)
	})
}
