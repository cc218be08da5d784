package board

import (
	"fmt"
	"strings"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// ViewMode selects the board's grouping strategy. Modes are mutually
// exclusive; each has its own lane-assignment rule.
type ViewMode string

const (
	// ViewModeDefault scatters leads across a fixed number of lanes by ID hash
	ViewModeDefault ViewMode = "default"

	// ViewModeBySource groups leads into one lane per distinct source
	ViewModeBySource ViewMode = "group-by-source"

	// ViewModeBySetter groups leads into one lane per setter, plus unassigned
	ViewModeBySetter ViewMode = "group-by-setter"

	// ViewModeByCloser groups leads into one lane per closer, plus unassigned
	ViewModeByCloser ViewMode = "group-by-closer"
)

// Validate checks if the ViewMode is a valid enum value.
func (m ViewMode) Validate() error {
	switch m {
	case ViewModeDefault, ViewModeBySource, ViewModeBySetter, ViewModeByCloser:
		return nil
	default:
		return fmt.Errorf("unknown view mode: %q", m)
	}
}

// defaultLaneCount is the fixed lane space for the default scatter mode.
const defaultLaneCount = 8

// otherSourceLane is the lane label for leads with no source in source mode.
const otherSourceLane = "Other"

// unassignedLane is the label of the trailing lane in setter/closer modes.
const unassignedLane = "Unassigned"

// Lanes maps leads to lane indices for one view mode. A Lanes value is built
// from the full, unfiltered lead set so lane numbering stays stable while
// filters hide and show members; rebuild it only when the view mode, the user
// roster, or the distinct-source set changes - never on a filter change.
type Lanes struct {
	mode   ViewMode
	labels []string       // lane index -> label; empty labels in default mode
	byKey  map[string]int // source value or user ID -> lane index
	roles  map[string]pipeline.Role
}

// ResolveLanes builds the lane mapping for a view mode from the unfiltered
// users and leads.
//
// Lane assignment rules per mode:
//   - default: hash of the lead ID modulo a fixed lane count of 8. A stable
//     pseudo-random scatter that never moves a lead between renders.
//   - group-by-source: one lane per distinct source in first-seen order over
//     the lead set; leads without a source share the "Other" lane.
//   - group-by-setter / group-by-closer: one lane per user with the matching
//     role, in roster order, plus a trailing "Unassigned" lane.
func ResolveLanes(mode ViewMode, users []pipeline.User, leads []pipeline.Lead) *Lanes {
	l := &Lanes{
		mode:  mode,
		byKey: make(map[string]int),
		roles: make(map[string]pipeline.Role, len(users)),
	}

	for _, user := range users {
		l.roles[user.ID] = user.Role
	}

	switch mode {
	case ViewModeBySource:
		for _, lead := range leads {
			source := lead.Source
			if source == "" {
				source = otherSourceLane
			}
			if _, seen := l.byKey[source]; !seen {
				l.byKey[source] = len(l.labels)
				l.labels = append(l.labels, source)
			}
		}
		// An empty lead set still needs one lane to place late arrivals
		if len(l.labels) == 0 {
			l.byKey[otherSourceLane] = 0
			l.labels = append(l.labels, otherSourceLane)
		}

	case ViewModeBySetter, ViewModeByCloser:
		role := pipeline.RoleSetter
		if mode == ViewModeByCloser {
			role = pipeline.RoleCloser
		}
		for _, user := range users {
			if user.Role != role {
				continue
			}
			if _, seen := l.byKey[user.ID]; !seen {
				l.byKey[user.ID] = len(l.labels)
				l.labels = append(l.labels, user.Name)
			}
		}
		l.labels = append(l.labels, unassignedLane)

	default:
		// Fixed anonymous lane space; nothing to precompute
	}

	return l
}

// Count returns the number of lanes.
func (l *Lanes) Count() int {
	if l.mode == ViewModeDefault {
		return defaultLaneCount
	}
	return len(l.labels)
}

// Label returns the display label for a lane index, or "" for anonymous lanes.
func (l *Lanes) Label(index int) string {
	if index < 0 || index >= len(l.labels) {
		return ""
	}
	return l.labels[index]
}

// Labels returns the lane labels in lane order. Empty in default mode.
func (l *Lanes) Labels() []string {
	return append([]string(nil), l.labels...)
}

// LaneOf returns the lane index for a lead under this mode's assignment rule.
//
// In setter/closer modes a lead whose assignee is unknown or does not carry
// the matching role lands in the trailing unassigned lane - a lead assigned
// to a setter is "unassigned" as far as the closer view is concerned. An
// assignee that has not been loaded yet also lands there, and moves to its
// owner's lane as soon as the user record resolves.
func (l *Lanes) LaneOf(lead *pipeline.Lead) int {
	switch l.mode {
	case ViewModeBySource:
		source := lead.Source
		if source == "" {
			source = otherSourceLane
		}
		if idx, ok := l.byKey[source]; ok {
			return idx
		}
		// Source unseen at resolve time (lead arrived later); park in lane 0
		return 0

	case ViewModeBySetter, ViewModeByCloser:
		if lead.AssignedTo != "" {
			if idx, ok := l.byKey[lead.AssignedTo]; ok {
				return idx
			}
		}
		return len(l.labels) - 1 // unassigned lane

	default:
		return int(Hash(lead.ID, laneSeed) % defaultLaneCount)
	}
}

// Signature condenses the inputs lane numbering depends on: the view mode,
// the user roster, and the distinct-source set. The controller compares
// signatures to decide when lanes must be rebuilt, keeping lane identity
// stable while the user merely types a search query.
func Signature(mode ViewMode, users []pipeline.User, leads []pipeline.Lead) string {
	var b strings.Builder
	b.WriteString(string(mode))

	for _, user := range users {
		b.WriteByte('|')
		b.WriteString(user.ID)
		b.WriteByte(':')
		b.WriteString(string(user.Role))
	}

	if mode == ViewModeBySource {
		seen := make(map[string]bool)
		for _, lead := range leads {
			source := lead.Source
			if source == "" {
				source = otherSourceLane
			}
			if !seen[source] {
				seen[source] = true
				b.WriteByte('/')
				b.WriteString(source)
			}
		}
	}

	return b.String()
}
