// api/schema_lint.go
package api

import (
	"fmt"
	"strings"

	"modelforge/internal/dsl"
)

type SchemaIssue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LintDrafts reports blocking problems of an import batch: presence failures and
// names or tables declared twice in the batch.
func LintDrafts(drafts []dsl.EntityDraft) []SchemaIssue {
	var issues []SchemaIssue
	names := map[string]bool{}
	tables := map[string]bool{}

	for _, d := range drafts {
		for _, it := range d.Check() {
			issues = append(issues, SchemaIssue{Entity: d.Name, Field: it.Field, Code: it.Code, Message: it.Message})
		}

		n := strings.ToLower(strings.TrimSpace(d.Name))
		if n != "" && names[n] {
			issues = append(issues, SchemaIssue{
				Entity:  d.Name,
				Field:   "name",
				Code:    "duplicate_in_batch",
				Message: fmt.Sprintf("model %q is declared more than once", d.Name),
			})
		}
		names[n] = true

		t := strings.TrimSpace(d.Table)
		if t != "" && tables[t] {
			issues = append(issues, SchemaIssue{
				Entity:  d.Name,
				Field:   "table",
				Code:    "duplicate_in_batch",
				Message: fmt.Sprintf("table %q is used by more than one model", t),
			})
		}
		tables[t] = true
	}
	return issues
}
