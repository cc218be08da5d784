package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

func laneUsers() []pipeline.User {
	return []pipeline.User{
		{ID: "U1", Name: "Sam", Role: pipeline.RoleSetter},
		{ID: "U2", Name: "Alex", Role: pipeline.RoleCloser},
		{ID: "U3", Name: "Jo", Role: pipeline.RoleSetter},
	}
}

func laneLeads() []pipeline.Lead {
	return []pipeline.Lead{
		{ID: "L1", Name: "Alice", Source: "Ads", AssignedTo: "U1"},
		{ID: "L2", Name: "Bruno", Source: "Referral", AssignedTo: "U2"},
		{ID: "L3", Name: "Chloe", Source: "Ads"},
		{ID: "L4", Name: "David", Source: "", AssignedTo: "U3"},
	}
}

func TestViewModeValidate(t *testing.T) {
	for _, mode := range []ViewMode{ViewModeDefault, ViewModeBySource, ViewModeBySetter, ViewModeByCloser} {
		assert.NoError(t, mode.Validate())
	}
	assert.Error(t, ViewMode("group-by-vibe").Validate())
	assert.Error(t, ViewMode("").Validate())
}

func TestResolveLanes_Default(t *testing.T) {
	lanes := ResolveLanes(ViewModeDefault, laneUsers(), laneLeads())

	assert.Equal(t, defaultLaneCount, lanes.Count())
	assert.Empty(t, lanes.Labels())

	lead := pipeline.Lead{ID: "L1"}
	lane := lanes.LaneOf(&lead)
	assert.GreaterOrEqual(t, lane, 0)
	assert.Less(t, lane, defaultLaneCount)

	// Stable across repeated resolution
	again := ResolveLanes(ViewModeDefault, nil, nil)
	assert.Equal(t, lane, again.LaneOf(&lead))
}

func TestResolveLanes_BySource(t *testing.T) {
	t.Run("first-seen order with Other for empty sources", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeBySource, nil, laneLeads())

		assert.Equal(t, []string{"Ads", "Referral", "Other"}, lanes.Labels())
		assert.Equal(t, 3, lanes.Count())

		assert.Equal(t, 0, lanes.LaneOf(&pipeline.Lead{Source: "Ads"}))
		assert.Equal(t, 1, lanes.LaneOf(&pipeline.Lead{Source: "Referral"}))
		assert.Equal(t, 2, lanes.LaneOf(&pipeline.Lead{Source: ""}))
	})

	t.Run("empty lead set still has one lane", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeBySource, nil, nil)
		require.Equal(t, 1, lanes.Count())
		assert.Equal(t, "Other", lanes.Label(0))
		assert.Equal(t, 0, lanes.LaneOf(&pipeline.Lead{Source: ""}))
	})

	t.Run("unseen source parks in lane 0 until lanes rebuild", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeBySource, nil, laneLeads())
		assert.Equal(t, 0, lanes.LaneOf(&pipeline.Lead{Source: "Billboard"}))
	})
}

func TestResolveLanes_ByRole(t *testing.T) {
	t.Run("setter lanes in roster order plus unassigned", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeBySetter, laneUsers(), laneLeads())

		assert.Equal(t, []string{"Sam", "Jo", "Unassigned"}, lanes.Labels())
		assert.Equal(t, 0, lanes.LaneOf(&pipeline.Lead{AssignedTo: "U1"}))
		assert.Equal(t, 1, lanes.LaneOf(&pipeline.Lead{AssignedTo: "U3"}))
		assert.Equal(t, 2, lanes.LaneOf(&pipeline.Lead{}))
	})

	t.Run("wrong-role assignee lands in the unassigned lane", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeBySetter, laneUsers(), laneLeads())
		// U2 is a closer; in the setter view that lead is unassigned
		assert.Equal(t, 2, lanes.LaneOf(&pipeline.Lead{AssignedTo: "U2"}))
	})

	t.Run("unknown assignee lands in the unassigned lane", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeByCloser, laneUsers(), laneLeads())
		assert.Equal(t, []string{"Alex", "Unassigned"}, lanes.Labels())
		assert.Equal(t, 1, lanes.LaneOf(&pipeline.Lead{AssignedTo: "U99"}))
	})

	t.Run("no matching users leaves only the unassigned lane", func(t *testing.T) {
		lanes := ResolveLanes(ViewModeByCloser, []pipeline.User{
			{ID: "U1", Name: "Sam", Role: pipeline.RoleSetter},
		}, nil)
		assert.Equal(t, []string{"Unassigned"}, lanes.Labels())
		assert.Equal(t, 0, lanes.LaneOf(&pipeline.Lead{AssignedTo: "U1"}))
	})
}

func TestSignature(t *testing.T) {
	users := laneUsers()
	leads := laneLeads()

	t.Run("invariant under lead field changes that keep the source set", func(t *testing.T) {
		sig := Signature(ViewModeBySource, users, leads)

		moved := append([]pipeline.Lead(nil), leads...)
		moved[0].CurrentStep = "Closed"
		moved[0].AssignedTo = "U2"
		assert.Equal(t, sig, Signature(ViewModeBySource, users, moved))
	})

	t.Run("changes with the distinct-source set in source mode", func(t *testing.T) {
		sig := Signature(ViewModeBySource, users, leads)
		extra := append(append([]pipeline.Lead(nil), leads...),
			pipeline.Lead{ID: "L5", Source: "Billboard"})
		assert.NotEqual(t, sig, Signature(ViewModeBySource, users, extra))
	})

	t.Run("ignores the source set outside source mode", func(t *testing.T) {
		sig := Signature(ViewModeBySetter, users, leads)
		extra := append(append([]pipeline.Lead(nil), leads...),
			pipeline.Lead{ID: "L5", Source: "Billboard"})
		assert.Equal(t, sig, Signature(ViewModeBySetter, users, extra))
	})

	t.Run("changes with the roster and with the mode", func(t *testing.T) {
		sig := Signature(ViewModeBySetter, users, leads)
		assert.NotEqual(t, sig, Signature(ViewModeByCloser, users, leads))

		grown := append(append([]pipeline.User(nil), users...),
			pipeline.User{ID: "U4", Name: "Max", Role: pipeline.RoleSetter})
		assert.NotEqual(t, sig, Signature(ViewModeBySetter, grown, leads))
	})
}
