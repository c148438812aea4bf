package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"ledgerspace/internal/ledger"
)

// StateChangedMessage announces a committed ledger transition. It carries
// only identifiers; consumers read the snapshot itself from the blob store.
type StateChangedMessage struct {
	Transition  string    `json:"transition"`
	Version     int64     `json:"version"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewStateChangedMessage builds a message stamped with the current time.
func NewStateChangedMessage(transition string, version int64, workspaceID string) *StateChangedMessage {
	return &StateChangedMessage{
		Transition:  transition,
		Version:     version,
		WorkspaceID: workspaceID,
		Timestamp:   time.Now(),
	}
}

// FromEvent converts a store event.
func FromEvent(ev ledger.Event) *StateChangedMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &StateChangedMessage{
		Transition:  ev.Transition,
		Version:     ev.Version,
		WorkspaceID: ev.WorkspaceID,
		ActorID:     ev.ActorID,
		Timestamp:   ts,
	}
}

func (m *StateChangedMessage) Validate() error {
	if m.Transition == "" {
		return fmt.Errorf("message has no transition")
	}
	if m.Version <= 0 {
		return fmt.Errorf("message version must be positive, got %d", m.Version)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *StateChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StateChangedMessageFromJSON parses and validates a message body.
func StateChangedMessageFromJSON(data []byte) (*StateChangedMessage, error) {
	var msg StateChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
