package calls

import "time"

// Call is one outbound call placed on behalf of an operator.
//
// Lifecycle: pending -> in-progress -> {completed, failed}. Unknown is the
// fallback for provider codes we do not recognise. Once completed or failed,
// the record no longer changes.
type Call struct {
	ID string `json:"id"`

	// Body is the text read to the callee. Agent calls store AgentPlaceholderBody.
	Body string `json:"body"`
	To   string `json:"to_number"`

	Status Status `json:"status"`
	SID    string `json:"sid,omitempty"`
	Error  string `json:"error,omitempty"`

	Voice    string   `json:"voice"`
	Provider Provider `json:"provider"`
	AgentID  string   `json:"agent_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// Terminal reports whether no further status event may change the record.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Provider selects how the call's script is rendered.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderElevenLabs Provider = "elevenlabs"
	ProviderAgent      Provider = "agent"
)

// ParseProvider maps free-form input onto the closed provider set.
// Anything unrecognised is treated as OpenAI (built-in speech).
func ParseProvider(s string) Provider {
	switch Provider(s) {
	case ProviderElevenLabs:
		return ProviderElevenLabs
	case ProviderAgent:
		return ProviderAgent
	default:
		return ProviderOpenAI
	}
}

const (
	MaxBodyLength        = 300
	AgentPlaceholderBody = "[agent conversation]"
	DefaultVoice         = "alloy"
	QuickCallBody        = "Hello. You just requested I call you from Brad's website. Hope you are doing great today. Cheers!"
)
