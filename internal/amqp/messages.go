package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeOp names the mutation a change message describes.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// CashbookChangeMessage is the lightweight change-feed payload: just
// the id and operation. Consumers fetch the current record from the
// store themselves, so stale messages cannot overwrite newer state.
type CashbookChangeMessage struct {
	ID        string    `json:"id"`
	Op        ChangeOp  `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCashbookChangeMessage builds a change message stamped with now.
func NewCashbookChangeMessage(id string, op ChangeOp) *CashbookChangeMessage {
	return &CashbookChangeMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// Validate rejects messages a consumer cannot act on.
func (m *CashbookChangeMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("change message missing id")
	}
	switch m.Op {
	case OpCreated, OpUpdated, OpDeleted:
		return nil
	default:
		return fmt.Errorf("unknown change op %q", m.Op)
	}
}

// ToJSON converts the message to JSON bytes.
func (m *CashbookChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CashbookChangeMessageFromJSON parses and validates a message.
func CashbookChangeMessageFromJSON(data []byte) (*CashbookChangeMessage, error) {
	var msg CashbookChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
