package cloudwatchrepo

import (
	"fmt"
	"strings"

	"github.com/groblegark/auditstore/internal/model"
)

// filterPattern renders the filter's field conditions as a CloudWatch
// JSON metric filter expression:
//
//	{ ($.category = "model") && ($.action = "created") }
//
// Absent fields contribute no term; an empty filter yields "" so the
// query scans unfiltered.
func filterPattern(filter model.Filter) string {
	conditions := filter.FieldConditions()
	if len(conditions) == 0 {
		return ""
	}
	terms := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		terms = append(terms, fmt.Sprintf("($.%s = %q)", cond.Field, cond.Value))
	}
	return "{ " + strings.Join(terms, " && ") + " }"
}
