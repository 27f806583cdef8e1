package types

import "github.com/GriffinCanCode/vatomsync/internal/shared/payload"

// Push message types
const (
	MsgStateUpdate = "state_update"
	MsgInventory   = "inventory"
	MsgMap         = "map"
	MsgActivity    = "my_events"
	MsgInfo        = "info"
)

// Message is a raw frame received over the push channel
type Message struct {
	Type    string        `json:"msg_type"`
	Payload payload.Value `json:"payload"`
}

// NewMessage builds a message from a Go literal payload
func NewMessage(msgType string, body map[string]any) Message {
	return Message{Type: msgType, Payload: payload.MustFromAny(body)}
}
