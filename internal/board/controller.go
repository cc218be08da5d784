package board

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// Mutator is the outbound side of the board: user-initiated advance and assign
// requests handed to the external collaborator API. Calls are fire-and-forget
// from the engine's perspective - the authoritative effect always arrives back
// through the event stream, never through the call's response.
type Mutator interface {
	// AdvanceLead requests a move to toStep; empty toStep requests the
	// server's default successor policy.
	AdvanceLead(ctx context.Context, leadID, toStep string) error

	// AssignLead requests an assignee change; empty toUser unassigns.
	AssignLead(ctx context.Context, leadID, toUser string) error
}

// Dot is one positioned lead, ready for the render surface.
type Dot struct {
	Lead   pipeline.Lead
	Column int
	Lane   int
	Pos    Point
}

// Frame is a fully laid-out board: the column headers, the lane shape, and a
// dot per visible lead.
type Frame struct {
	Steps      []string
	LaneCount  int
	LaneLabels []string
	Dots       []Dot
}

// Controller owns the ephemeral view-selection state (view mode, zoom, filters,
// selection) and orchestrates the engine: it pulls filtered leads through the
// filter pipeline, resolves lanes, and feeds position calculator outputs to
// the render surface.
//
// Recomputation is incremental to avoid layout thrashing: a filter change only
// refilters, a lead mutation only invalidates that lead's cached position, and
// lanes are rebuilt only when the view mode, the user roster, or the
// distinct-source set changes.
//
// View state has no persistence; it dies with the controller when the session
// is re-bootstrapped.
type Controller struct {
	store   *Store
	mutator Mutator

	mu       sync.Mutex
	width    float64
	height   float64
	zoom     float64
	mode     ViewMode
	criteria Criteria
	selected string

	lanes     *Lanes
	laneSig   string
	positions map[string]cachedPoint
}

// cachedPoint is a memoized layout position together with the lane and column
// it was computed for. A cached point is reused only while both still match,
// so a lead whose change notice was lost (the change buffer is lossy under
// pressure) still gets a fresh coordinate on the next frame.
type cachedPoint struct {
	lane   int
	column int
	pos    Point
}

// NewController creates a controller over a store with the given container
// dimensions. Mutator may be nil for read-only surfaces.
func NewController(store *Store, mutator Mutator, width, height float64) *Controller {
	return &Controller{
		store:     store,
		mutator:   mutator,
		width:     width,
		height:    height,
		zoom:      1.0,
		mode:      ViewModeDefault,
		positions: make(map[string]cachedPoint),
	}
}

// SetViewMode switches the grouping strategy. Lanes and cached positions are
// rebuilt on the next frame. Invalid modes are rejected.
func (c *Controller) SetViewMode(mode ViewMode) error {
	if err := mode.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != mode {
		c.mode = mode
		c.invalidateLayoutLocked()
	}
	return nil
}

// ViewMode returns the current grouping strategy.
func (c *Controller) ViewMode() ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetZoom scales the board. Non-positive factors are rejected.
func (c *Controller) SetZoom(zoom float64) error {
	if zoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", zoom)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.zoom != zoom {
		c.zoom = zoom
		c.positions = make(map[string]cachedPoint)
	}
	return nil
}

// Resize updates the container dimensions, invalidating cached positions.
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.width != width || c.height != height {
		c.width = width
		c.height = height
		c.positions = make(map[string]cachedPoint)
	}
}

// SetQuery updates the text filter. Filters never move lanes, so only the
// visible set changes.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria.Query = query
}

// SetSourceFilter updates the source filter ("all" or a source value).
func (c *Controller) SetSourceFilter(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria.Source = source
}

// SetAssignedFilter updates the assignee filter ("all", "unassigned" or a
// user ID).
func (c *Controller) SetAssignedFilter(assigned string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria.Assigned = assigned
}

// Select marks a lead as selected, opening its detail view. An empty ID
// clears the selection.
func (c *Controller) Select(leadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = leadID
}

// Selected returns the currently selected lead ID, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Frame assembles the current board: filtered leads laid out over the current
// lanes and columns. Positions come from the per-lead cache, and a cached
// point is reused only while the lead's lane and column are unchanged, so a
// moved lead is recomputed even when its change notice was lost.
func (c *Controller) Frame() Frame {
	view := c.store.View()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureLanesLocked(view)

	visible := c.criteria.Apply(view.Leads)

	effWidth := c.width * c.zoom
	effHeight := c.height * c.zoom
	columnWidth := 0.0
	if len(view.Steps) > 0 {
		columnWidth = effWidth / float64(len(view.Steps))
	}

	frame := Frame{
		Steps:      view.Steps,
		LaneCount:  c.lanes.Count(),
		LaneLabels: c.lanes.Labels(),
		Dots:       make([]Dot, 0, len(visible)),
	}

	for _, lead := range visible {
		column := c.store.ColumnIndex(lead.CurrentStep)
		lane := c.lanes.LaneOf(&lead)

		cached, ok := c.positions[lead.ID]
		if !ok || cached.lane != lane || cached.column != column {
			cached = cachedPoint{
				lane:   lane,
				column: column,
				pos:    Position(lead.ID, lane, c.lanes.Count(), column, columnWidth, effHeight),
			}
			c.positions[lead.ID] = cached
		}

		frame.Dots = append(frame.Dots, Dot{
			Lead:   lead,
			Column: column,
			Lane:   lane,
			Pos:    cached.pos,
		})
	}

	return frame
}

// Run consumes store change notices until the context is cancelled or the
// store is closed, keeping the layout caches incremental: a lead mutation
// invalidates only that lead, a snapshot reset invalidates everything.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change, ok := <-c.store.Changes():
			if !ok {
				return nil
			}
			c.applyChange(change)
		}
	}
}

// applyChange invalidates exactly what a store change made stale.
func (c *Controller) applyChange(change Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch change.Kind {
	case ChangeLead:
		delete(c.positions, change.LeadID)
	case ChangeSnapshot:
		c.invalidateLayoutLocked()
		c.selected = ""
	}
}

// Advance requests a move of the selected lead. Fire-and-forget: the request
// runs in the background and the board stays at its last authoritative state
// until the resulting stream event lands. A failed request is logged and
// otherwise ignored.
func (c *Controller) Advance(ctx context.Context, toStep string) {
	c.requestMutation(ctx, "advance", func(ctx context.Context, leadID string) error {
		return c.mutator.AdvanceLead(ctx, leadID, toStep)
	})
}

// Assign requests an assignee change for the selected lead; empty toUser
// unassigns. Fire-and-forget, like Advance.
func (c *Controller) Assign(ctx context.Context, toUser string) {
	c.requestMutation(ctx, "assign", func(ctx context.Context, leadID string) error {
		return c.mutator.AssignLead(ctx, leadID, toUser)
	})
}

func (c *Controller) requestMutation(ctx context.Context, op string, call func(context.Context, string) error) {
	c.mu.Lock()
	leadID := c.selected
	mutator := c.mutator
	c.mu.Unlock()

	if leadID == "" || mutator == nil {
		return
	}

	go func() {
		if err := call(ctx, leadID); err != nil {
			log.Printf("[board] %s request for lead %s failed: %v", op, leadID, err)
		}
	}()
}

// ensureLanesLocked rebuilds the lane mapping when - and only when - the
// inputs lane numbering depends on have changed.
func (c *Controller) ensureLanesLocked(view View) {
	sig := Signature(c.mode, view.Users, view.Leads)
	if c.lanes != nil && sig == c.laneSig {
		return
	}

	c.lanes = ResolveLanes(c.mode, view.Users, view.Leads)
	c.laneSig = sig
	c.positions = make(map[string]cachedPoint)
}

func (c *Controller) invalidateLayoutLocked() {
	c.lanes = nil
	c.laneSig = ""
	c.positions = make(map[string]cachedPoint)
}
