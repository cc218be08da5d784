package board

import (
	"strings"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// Filter sentinel values. "all" disables a criterion; "unassigned" keeps only
// leads with no assignee.
const (
	FilterAll        = "all"
	FilterUnassigned = "unassigned"
)

// Criteria defines the board's lead filters.
// All filters are ANDed together - a lead must match ALL criteria to stay
// visible. Zero-value criteria (empty query, empty or "all" selectors) match
// every lead.
type Criteria struct {
	Query    string // Case-insensitive substring of name or source, empty = no filter
	Source   string // Exact source match, empty or "all" = no filter
	Assigned string // User ID, "unassigned", empty or "all" = no filter
}

// Matches returns true if the lead matches all filter criteria.
func (c *Criteria) Matches(lead *pipeline.Lead) bool {
	if c.Query != "" {
		query := strings.ToLower(c.Query)
		if !strings.Contains(strings.ToLower(lead.Name), query) &&
			!strings.Contains(strings.ToLower(lead.Source), query) {
			return false
		}
	}

	if c.Source != "" && c.Source != FilterAll && lead.Source != c.Source {
		return false
	}

	switch c.Assigned {
	case "", FilterAll:
	case FilterUnassigned:
		if lead.AssignedTo != "" {
			return false
		}
	default:
		if lead.AssignedTo != c.Assigned {
			return false
		}
	}

	return true
}

// Apply narrows a lead set to those matching the criteria.
// Pure and stable: no side effects, and matching leads keep their relative
// input order, so repeated calls on the same input yield the same output.
func (c *Criteria) Apply(leads []pipeline.Lead) []pipeline.Lead {
	kept := make([]pipeline.Lead, 0, len(leads))
	for _, lead := range leads {
		if c.Matches(&lead) {
			kept = append(kept, lead)
		}
	}
	return kept
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.Query != "" ||
		(c.Source != "" && c.Source != FilterAll) ||
		(c.Assigned != "" && c.Assigned != FilterAll)
}
