package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Lead events form a closed, tagged set of incremental state mutations delivered
// over the live stream. Every event carries absolute target values rather than
// deltas, so applying the same event twice is safe (idempotent by construction)
// and re-delivery after a reconnect cannot corrupt state.

// EventType tags a lead event on the wire.
type EventType string

const (
	// EventTypeLeadAdvanced signals that a lead moved to a pipeline step
	EventTypeLeadAdvanced EventType = "lead_advanced"

	// EventTypeLeadAssigned signals that a lead was assigned to a user (or unassigned)
	EventTypeLeadAssigned EventType = "lead_assigned"
)

// ErrUnknownEventType is returned by DecodeEvent for messages whose type tag is
// not part of the closed event set. Consumers ignore these, they are not fatal.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is a single lead mutation. The concrete types are LeadAdvanced and
// LeadAssigned; unknown wire tags are rejected at the decode boundary and never
// reach consumers.
type Event interface {
	// LeadID names the lead this event mutates.
	LeadID() string

	// Type returns the wire tag for this event.
	Type() EventType
}

// LeadAdvanced moves a lead to an absolute target step.
type LeadAdvanced struct {
	Lead string // Lead ID
	To   string // Target step name
}

// LeadID implements Event.
func (e LeadAdvanced) LeadID() string { return e.Lead }

// Type implements Event.
func (e LeadAdvanced) Type() EventType { return EventTypeLeadAdvanced }

// LeadAssigned assigns a lead to a user, or unassigns it when ToUser is empty.
type LeadAssigned struct {
	Lead   string // Lead ID
	ToUser string // Target user ID, empty = unassigned
}

// LeadID implements Event.
func (e LeadAssigned) LeadID() string { return e.Lead }

// Type implements Event.
func (e LeadAssigned) Type() EventType { return EventTypeLeadAssigned }

// wireEvent is the JSON shape shared by all stream messages: one object per
// message with a type tag. to_user is a pointer so an explicit null unassigns.
type wireEvent struct {
	Type   string  `json:"type"`
	LeadID string  `json:"lead_id"`
	To     string  `json:"to,omitempty"`
	ToUser *string `json:"to_user"`
}

// DecodeEvent decodes a single stream message into a typed event.
// Returns ErrUnknownEventType (wrapped) for type tags outside the closed set;
// other errors indicate a malformed message.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	// The type tag is inspected first: a message outside the closed event set
	// is "unknown", never "malformed", whatever else it carries or omits.
	switch EventType(w.Type) {
	case EventTypeLeadAdvanced:
		if w.LeadID == "" {
			return nil, fmt.Errorf("event is missing lead_id")
		}
		if w.To == "" {
			return nil, fmt.Errorf("lead_advanced event is missing to")
		}
		return LeadAdvanced{Lead: w.LeadID, To: w.To}, nil

	case EventTypeLeadAssigned:
		if w.LeadID == "" {
			return nil, fmt.Errorf("event is missing lead_id")
		}
		toUser := ""
		if w.ToUser != nil {
			toUser = *w.ToUser
		}
		return LeadAssigned{Lead: w.LeadID, ToUser: toUser}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
	}
}

// EncodeEvent encodes a typed event into its wire form.
func EncodeEvent(ev Event) ([]byte, error) {
	var w wireEvent

	switch e := ev.(type) {
	case LeadAdvanced:
		w = wireEvent{Type: string(EventTypeLeadAdvanced), LeadID: e.Lead, To: e.To}

	case LeadAssigned:
		w = wireEvent{Type: string(EventTypeLeadAssigned), LeadID: e.Lead}
		if e.ToUser != "" {
			toUser := e.ToUser
			w.ToUser = &toUser
		}

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return data, nil
}

// IsUnknownEventType returns true if the error came from decoding a message
// whose type tag is outside the closed event set.
func IsUnknownEventType(err error) bool {
	return errors.Is(err, ErrUnknownEventType)
}
