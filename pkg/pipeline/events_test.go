package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("lead_advanced", func(t *testing.T) {
		event, err := DecodeEvent([]byte(`{"type":"lead_advanced","lead_id":"l1","to":"Qualified"}`))
		require.NoError(t, err)

		advanced, ok := event.(LeadAdvanced)
		require.True(t, ok)
		assert.Equal(t, "l1", advanced.LeadID())
		assert.Equal(t, "Qualified", advanced.To)
		assert.Equal(t, EventTypeLeadAdvanced, advanced.Type())
	})

	t.Run("lead_assigned", func(t *testing.T) {
		event, err := DecodeEvent([]byte(`{"type":"lead_assigned","lead_id":"l1","to_user":"u2"}`))
		require.NoError(t, err)

		assigned, ok := event.(LeadAssigned)
		require.True(t, ok)
		assert.Equal(t, "u2", assigned.ToUser)
	})

	t.Run("null to_user unassigns", func(t *testing.T) {
		event, err := DecodeEvent([]byte(`{"type":"lead_assigned","lead_id":"l1","to_user":null}`))
		require.NoError(t, err)

		assigned, ok := event.(LeadAssigned)
		require.True(t, ok)
		assert.Empty(t, assigned.ToUser)
	})

	t.Run("unknown type tag", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"lead_archived","lead_id":"l1"}`))
		require.Error(t, err)
		assert.True(t, IsUnknownEventType(err))
	})

	t.Run("unknown type without lead_id is still unknown, not malformed", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"heartbeat"}`))
		require.Error(t, err)
		assert.True(t, IsUnknownEventType(err))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{not json`))
		require.Error(t, err)
		assert.False(t, IsUnknownEventType(err))
	})

	t.Run("missing lead_id", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"lead_advanced","to":"Qualified"}`))
		assert.ErrorContains(t, err, "missing lead_id")
	})

	t.Run("lead_advanced without target", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"lead_advanced","lead_id":"l1"}`))
		assert.ErrorContains(t, err, "missing to")
	})
}

func TestEncodeEvent(t *testing.T) {
	t.Run("round trips lead_advanced", func(t *testing.T) {
		data, err := EncodeEvent(LeadAdvanced{Lead: "l1", To: "Meeting"})
		require.NoError(t, err)

		decoded, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, LeadAdvanced{Lead: "l1", To: "Meeting"}, decoded)
	})

	t.Run("unassignment encodes a null target", func(t *testing.T) {
		data, err := EncodeEvent(LeadAssigned{Lead: "l1"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"lead_assigned","lead_id":"l1","to_user":null}`, string(data))

		decoded, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, LeadAssigned{Lead: "l1"}, decoded)
	})
}
