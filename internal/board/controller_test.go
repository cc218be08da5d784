package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// recordingMutator captures mutation requests for assertions.
type recordingMutator struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
	fail  bool
}

func newRecordingMutator() *recordingMutator {
	return &recordingMutator{done: make(chan struct{}, 4)}
}

func (m *recordingMutator) AdvanceLead(ctx context.Context, leadID, toStep string) error {
	m.mu.Lock()
	m.calls = append(m.calls, "advance:"+leadID+":"+toStep)
	m.mu.Unlock()
	m.done <- struct{}{}
	if m.fail {
		return errors.New("backend unavailable")
	}
	return nil
}

func (m *recordingMutator) AssignLead(ctx context.Context, leadID, toUser string) error {
	m.mu.Lock()
	m.calls = append(m.calls, "assign:"+leadID+":"+toUser)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *recordingMutator) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *recordingMutator) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mutation request")
	}
}

func newTestController(t *testing.T) (*Controller, *Store) {
	t.Helper()
	store := NewStore()
	t.Cleanup(store.Close)
	steps, users, leads := testSnapshot()
	require.NoError(t, store.LoadSnapshot(steps, users, leads))
	return NewController(store, nil, 1200, 600), store
}

func TestControllerFrame(t *testing.T) {
	t.Run("lays out every visible lead", func(t *testing.T) {
		controller, _ := newTestController(t)

		frame := controller.Frame()
		assert.Equal(t, []string{"New", "Qualified", "Meeting", "Closed"}, frame.Steps)
		assert.Equal(t, defaultLaneCount, frame.LaneCount)
		assert.Len(t, frame.Dots, 3)

		for _, dot := range frame.Dots {
			assert.GreaterOrEqual(t, dot.Lane, 0)
			assert.Less(t, dot.Lane, frame.LaneCount)
			assert.Greater(t, dot.Pos.X, 0.0)
			assert.Greater(t, dot.Pos.Y, 0.0)
		}
	})

	t.Run("positions are stable across frames", func(t *testing.T) {
		controller, _ := newTestController(t)
		first := controller.Frame()
		second := controller.Frame()
		assert.Equal(t, first, second)
	})

	t.Run("filters narrow the dots without moving lanes", func(t *testing.T) {
		controller, _ := newTestController(t)
		controller.SetViewMode(ViewModeBySource)

		before := controller.Frame()
		require.Len(t, before.Dots, 3)
		laneByID := make(map[string]int)
		for _, dot := range before.Dots {
			laneByID[dot.Lead.ID] = dot.Lane
		}

		controller.SetQuery("alice")
		after := controller.Frame()
		require.Len(t, after.Dots, 1)
		assert.Equal(t, "L1", after.Dots[0].Lead.ID)
		assert.Equal(t, laneByID["L1"], after.Dots[0].Lane)
		assert.Equal(t, before.LaneLabels, after.LaneLabels)
	})

	t.Run("mode switch rebuilds lanes", func(t *testing.T) {
		controller, _ := newTestController(t)
		require.NoError(t, controller.SetViewMode(ViewModeBySetter))

		frame := controller.Frame()
		assert.Equal(t, []string{"Sam", "Unassigned"}, frame.LaneLabels)
		assert.Equal(t, 2, frame.LaneCount)
		assert.Error(t, controller.SetViewMode(ViewMode("sideways")))
	})

	t.Run("empty board renders an empty frame", func(t *testing.T) {
		store := NewStore()
		t.Cleanup(store.Close)
		require.NoError(t, store.LoadSnapshot([]string{"New"}, nil, nil))

		controller := NewController(store, nil, 1200, 600)
		frame := controller.Frame()
		assert.Empty(t, frame.Dots)
		assert.Equal(t, []string{"New"}, frame.Steps)
	})
}

func TestControllerIncrementalRecompute(t *testing.T) {
	controller, store := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go controller.Run(ctx)

	before := controller.Frame()
	positions := make(map[string]Point)
	for _, dot := range before.Dots {
		positions[dot.Lead.ID] = dot.Pos
	}

	store.ApplyEvent(pipeline.LeadAdvanced{Lead: "L1", To: "Qualified"})

	// Wait until the change notice reaches the controller and the cached
	// position is recomputed for the new column
	require.Eventually(t, func() bool {
		for _, dot := range controller.Frame().Dots {
			if dot.Lead.ID == "L1" {
				return dot.Column == 1 && dot.Pos.X != positions["L1"].X
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	after := controller.Frame()
	for _, dot := range after.Dots {
		switch dot.Lead.ID {
		case "L1":
			assert.NotEqual(t, positions["L1"].X, dot.Pos.X)
		default:
			// Untouched leads keep their cached position
			assert.Equal(t, positions[dot.Lead.ID], dot.Pos)
		}
	}
}

func TestControllerRecomputeAfterDroppedNotice(t *testing.T) {
	controller, store := newTestController(t)

	before := controller.Frame()
	var beforeL1 Point
	for _, dot := range before.Dots {
		if dot.Lead.ID == "L1" {
			beforeL1 = dot.Pos
		}
	}

	// Flood the change buffer so the next notice is dropped on the floor
	for i := 0; i < 100; i++ {
		store.ApplyEvent(pipeline.LeadAssigned{Lead: "L2", ToUser: "U1"})
	}
	store.ApplyEvent(pipeline.LeadAdvanced{Lead: "L1", To: "Qualified"})

	// No controller Run loop is draining, so the cache was never invalidated;
	// the frame must still place the dot in its new column
	frame := controller.Frame()
	for _, dot := range frame.Dots {
		if dot.Lead.ID != "L1" {
			continue
		}
		assert.Equal(t, 1, dot.Column)
		assert.NotEqual(t, beforeL1.X, dot.Pos.X)
	}
}

func TestControllerViewState(t *testing.T) {
	t.Run("zoom rescales positions", func(t *testing.T) {
		controller, _ := newTestController(t)
		before := controller.Frame()

		assert.Error(t, controller.SetZoom(0))
		assert.Error(t, controller.SetZoom(-1))
		require.NoError(t, controller.SetZoom(2.0))

		after := controller.Frame()
		require.Len(t, after.Dots, len(before.Dots))
		assert.InDelta(t, before.Dots[0].Pos.X*2, after.Dots[0].Pos.X, 0.001)
		assert.InDelta(t, before.Dots[0].Pos.Y*2, after.Dots[0].Pos.Y, 0.001)
	})

	t.Run("resize invalidates positions", func(t *testing.T) {
		controller, _ := newTestController(t)
		before := controller.Frame()

		controller.Resize(600, 300)
		after := controller.Frame()
		assert.NotEqual(t, before.Dots[0].Pos, after.Dots[0].Pos)
	})

	t.Run("snapshot reset clears the selection", func(t *testing.T) {
		controller, store := newTestController(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go controller.Run(ctx)

		controller.Select("L1")
		assert.Equal(t, "L1", controller.Selected())

		require.NoError(t, store.LoadSnapshot([]string{"New"}, nil, nil))
		require.Eventually(t, func() bool {
			return controller.Selected() == ""
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestControllerMutations(t *testing.T) {
	t.Run("advance and assign act on the selection", func(t *testing.T) {
		store := NewStore()
		t.Cleanup(store.Close)
		steps, users, leads := testSnapshot()
		require.NoError(t, store.LoadSnapshot(steps, users, leads))

		mutator := newRecordingMutator()
		controller := NewController(store, mutator, 1200, 600)
		controller.Select("L1")

		controller.Advance(context.Background(), "Qualified")
		mutator.waitForCall(t)
		controller.Assign(context.Background(), "U2")
		mutator.waitForCall(t)

		assert.Equal(t, []string{"advance:L1:Qualified", "assign:L1:U2"}, mutator.recorded())
	})

	t.Run("no selection means no request", func(t *testing.T) {
		store := NewStore()
		t.Cleanup(store.Close)
		steps, users, leads := testSnapshot()
		require.NoError(t, store.LoadSnapshot(steps, users, leads))

		mutator := newRecordingMutator()
		controller := NewController(store, mutator, 1200, 600)

		controller.Advance(context.Background(), "Qualified")
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, mutator.recorded())
	})

	t.Run("a failed request leaves the board untouched", func(t *testing.T) {
		store := NewStore()
		t.Cleanup(store.Close)
		steps, users, leads := testSnapshot()
		require.NoError(t, store.LoadSnapshot(steps, users, leads))

		mutator := newRecordingMutator()
		mutator.fail = true
		controller := NewController(store, mutator, 1200, 600)
		controller.Select("L1")

		before := controller.Frame()
		controller.Advance(context.Background(), "Qualified")
		mutator.waitForCall(t)

		assert.Equal(t, before, controller.Frame())
	})
}
