package audit

import "time"

// Event is an immutable, append-only record of an operator action.
//
// Events are never updated or deleted. Actor and IP capture are best-effort;
// audit failures never block the action being audited.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// OperatorID is empty when the operator API runs without authentication.
	OperatorID string `json:"operator_id,omitempty"`
	Role       string `json:"role,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`

	CallID         string `json:"call_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`

	// Message is a short description for operators.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeCallPlaced    EventType = "call_placed"
	EventTypeCallDialed    EventType = "call_dialed"
	EventTypeAgentTurn     EventType = "agent_turn"
	EventTypeAdminAction   EventType = "admin_action"
	EventTypeSpeechRequest EventType = "speech_request"
)
