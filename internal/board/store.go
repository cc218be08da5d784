// Package board implements the real-time lead visualization engine: a state
// store reconciling the bootstrap snapshot with the live event stream, a pure
// filter pipeline, lane resolution per view mode, deterministic position
// layout, and the view controller that ties them together.
package board

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// ErrInvalidSnapshot is returned by LoadSnapshot when the snapshot cannot seed
// a board, i.e. when it defines no steps. No partial board is ever built from
// an invalid snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ChangeKind classifies a store change notice.
type ChangeKind string

const (
	// ChangeSnapshot means the whole board was (re)loaded - full recompute needed
	ChangeSnapshot ChangeKind = "snapshot"

	// ChangeLead means a single lead mutated - only that lead needs recompute
	ChangeLead ChangeKind = "lead"
)

// Change is a notice that the store's state moved. Lead-scoped changes name
// the affected lead so consumers can recompute incrementally.
type Change struct {
	Kind   ChangeKind
	LeadID string // set when Kind == ChangeLead
}

// View is an immutable snapshot of the store's state. Every call to
// Store.View returns fresh copies, so a view can be read freely while the
// store keeps mutating - readers never observe a partially-applied event.
type View struct {
	Steps []string
	Users []pipeline.User
	Leads []pipeline.Lead
}

// Store owns the canonical board collections (steps, users, leads) and applies
// the reconciliation rules when snapshots or events arrive. All mutation
// funnels through LoadSnapshot and ApplyEvent, which serialize behind a single
// mutex, so the store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	steps     []string
	stepIndex map[string]int
	users     []pipeline.User
	leads     map[string]pipeline.Lead
	leadOrder []string

	changes   chan Change
	closeOnce sync.Once
	closed    bool
}

// NewStore creates an empty store. It holds no data until LoadSnapshot seeds it.
func NewStore() *Store {
	return &Store{
		stepIndex: make(map[string]int),
		leads:     make(map[string]pipeline.Lead),
		// Buffered so slow consumers don't block event application; the
		// controller drains this promptly and coalesces on overflow anyway.
		changes: make(chan Change, 64),
	}
}

// LoadSnapshot atomically replaces all three collections from a bootstrap
// snapshot. Returns ErrInvalidSnapshot when steps is empty.
//
// Calling LoadSnapshot again is an explicit reset: the previous steps, users
// and leads are discarded entirely and consumers receive a snapshot-scoped
// change notice. This is the documented policy for re-bootstrapping a session.
func (s *Store) LoadSnapshot(steps []string, users []pipeline.User, leads []pipeline.Lead) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps defined", ErrInvalidSnapshot)
	}

	s.mu.Lock()

	s.steps = append([]string(nil), steps...)
	s.stepIndex = make(map[string]int, len(steps))
	for i, step := range s.steps {
		s.stepIndex[step] = i
	}

	s.users = append([]pipeline.User(nil), users...)

	// The id->lead mapping guarantees at most one live copy of each lead;
	// on duplicate ids the later record wins.
	s.leads = make(map[string]pipeline.Lead, len(leads))
	s.leadOrder = s.leadOrder[:0]
	for _, lead := range leads {
		if _, seen := s.leads[lead.ID]; !seen {
			s.leadOrder = append(s.leadOrder, lead.ID)
		}
		s.leads[lead.ID] = lead
	}

	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSnapshot})
	return nil
}

// ApplyEvent merges a single lead event into the store.
//
// Reconciliation rules:
//   - Unknown lead: the event is dropped (logged, not fatal). No entry is
//     created for the unknown id.
//   - Unknown target step on lead_advanced: clamped to the last known step so
//     a bad event can never corrupt layout.
//   - lead_assigned may reference a user that is not loaded yet; the assignee
//     id is stored as-is and resolves once the user record appears.
//
// Each applied event produces a fresh lead record, and mutation is atomic with
// respect to View() readers.
func (s *Store) ApplyEvent(event pipeline.Event) {
	s.mu.Lock()

	lead, ok := s.leads[event.LeadID()]
	if !ok {
		s.mu.Unlock()
		log.Printf("[board] dropping event %s for unknown lead %q", event.Type(), event.LeadID())
		return
	}

	switch e := event.(type) {
	case pipeline.LeadAdvanced:
		step := e.To
		if _, known := s.stepIndex[step]; !known {
			clamped := s.steps[len(s.steps)-1]
			log.Printf("[board] clamping unknown step %q to %q for lead %s", step, clamped, lead.ID)
			step = clamped
		}
		lead.CurrentStep = step
		lead.Status = pipeline.StatusForStep(s.steps, step)

	case pipeline.LeadAssigned:
		lead.AssignedTo = e.ToUser

	default:
		s.mu.Unlock()
		log.Printf("[board] dropping event of unexpected type %T", event)
		return
	}

	s.leads[lead.ID] = lead
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLead, LeadID: lead.ID})
}

// View returns an immutable copy of the current board state, reflecting
// exactly the most recently applied snapshot or event. Leads appear in
// snapshot order.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leads := make([]pipeline.Lead, 0, len(s.leadOrder))
	for _, id := range s.leadOrder {
		leads = append(leads, s.leads[id])
	}

	return View{
		Steps: append([]string(nil), s.steps...),
		Users: append([]pipeline.User(nil), s.users...),
		Leads: leads,
	}
}

// ColumnIndex resolves a step name to its board column, clamped to the valid
// range. Unknown steps resolve to column 0 so an unresolved reference still
// yields a defined position. Returns 0 when no snapshot is loaded.
func (s *Store) ColumnIndex(step string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, ok := s.stepIndex[step]; ok {
		return idx
	}
	return 0
}

// Changes returns the store's change notification channel. The channel is
// closed by Close. Intended for a single consumer (the view controller).
func (s *Store) Changes() <-chan Change {
	return s.changes
}

// Close tears the store down: the change channel is closed and later
// notifications are discarded. Safe to call multiple times.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.changes)
	})
}

// notify delivers a change notice without ever blocking event application.
// When the buffer is full the notice is dropped; consumers recompute from
// View() so a dropped notice only delays, never corrupts.
func (s *Store) notify(change Change) {
	// Holding the read lock keeps Close from closing the channel mid-send.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.changes <- change:
	default:
	}
}
