package conversations

import (
	"time"

	"voice-relay/internal/agent"
)

type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Turn is one utterance. Transcripts are append-only and chronological.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the state of one multi-turn agent call.
type Conversation struct {
	ID      string `json:"id"`
	AgentID string `json:"agent_id"`
	CallSid string `json:"call_sid"`
	History []Turn `json:"history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Conversation) Append(role Role, content string, at time.Time) {
	c.History = append(c.History, Turn{Role: role, Content: content, Timestamp: at})
}

// AgentHistory maps the transcript onto the agent API's sender labels.
func AgentHistory(turns []Turn) []agent.Message {
	out := make([]agent.Message, 0, len(turns))
	for _, t := range turns {
		sender := agent.SenderAssistant
		if t.Role == RoleCaller {
			sender = agent.SenderHuman
		}
		out = append(out, agent.Message{Text: t.Content, Sender: sender})
	}
	return out
}
