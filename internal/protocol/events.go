// Package protocol defines the call lifecycle events published by the bridge
// on NATS and relayed to live feed clients. All events are serialized as JSON
// and carry a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeCallStarted = "call_started"
	TypeCallResult  = "call_result"
	TypeCallEnded   = "call_ended"
)

// ActionSummary is one result action as carried on the wire.
type ActionSummary struct {
	Name        string `json:"name"`
	Value       any    `json:"value,omitempty"`
	Disposition string `json:"disposition,omitempty"`
}

// CallEvent describes a change in a call's lifecycle.
type CallEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	SessionID     string          `json:"session_id"`
	CallerID      string          `json:"caller_id,omitempty"`
	CallerUnknown bool            `json:"caller_unknown,omitempty"`
	Sequence      int             `json:"sequence,omitempty"`
	State         string          `json:"state,omitempty"`
	Actions       []ActionSummary `json:"actions,omitempty"`
	Ts            int64           `json:"ts"`
}

// NewCallEvent creates an event with a fresh id and the current timestamp.
func NewCallEvent(eventType, sessionID string) CallEvent {
	return CallEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sessionID,
		Ts:        time.Now().Unix(),
	}
}

// Subject returns the NATS subject suffix for the event, e.g.
// "started.<session_id>".
func (e CallEvent) Subject() string {
	switch e.Type {
	case TypeCallStarted:
		return "started." + e.SessionID
	case TypeCallResult:
		return "result." + e.SessionID
	case TypeCallEnded:
		return "ended." + e.SessionID
	default:
		return "unknown." + e.SessionID
	}
}

// Marshal encodes the event.
func (e CallEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q event: %w", e.Type, err)
	}
	return data, nil
}

// ParseCallEvent decodes and validates an event. Unknown types and events
// without a session id are rejected.
func ParseCallEvent(data []byte) (CallEvent, error) {
	var e CallEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return CallEvent{}, fmt.Errorf("protocol: failed to parse event: %w", err)
	}
	switch e.Type {
	case TypeCallStarted, TypeCallResult, TypeCallEnded:
	case "":
		return CallEvent{}, fmt.Errorf("protocol: missing or empty \"type\" field")
	default:
		return CallEvent{}, fmt.Errorf("protocol: unknown event type: %q", e.Type)
	}
	if e.SessionID == "" {
		return CallEvent{}, fmt.Errorf("protocol: %q event has no session_id", e.Type)
	}
	return e, nil
}
