package telephony

import (
	"net/http"
	"strings"
)

// Twilio posts webhook fields as application/x-www-form-urlencoded.
// Browser-driven GET requests carry the same fields on the query string.
// Ref: https://www.twilio.com/docs/usage/webhooks/voice-webhooks

// StatusCallback is the subset of a call status webhook we reconcile on.
type StatusCallback struct {
	// MessageID always comes from our own callback URL.
	MessageID  string
	CallStatus string
	CallSid    string
}

// ParseStatusCallback reads CallStatus and CallSid from the form body for
// POST and from the query for every other method.
func ParseStatusCallback(r *http.Request) (StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallback{}, err
	}
	q := r.URL.Query()
	out := StatusCallback{MessageID: strings.TrimSpace(q.Get("messageId"))}
	if r.Method == http.MethodPost {
		out.CallStatus = r.PostFormValue("CallStatus")
		out.CallSid = r.PostFormValue("CallSid")
	} else {
		out.CallStatus = q.Get("CallStatus")
		out.CallSid = q.Get("CallSid")
	}
	out.CallStatus = strings.TrimSpace(out.CallStatus)
	out.CallSid = strings.TrimSpace(out.CallSid)
	return out, nil
}

// GatherCallback is an instruction or speech-gather webhook for agent calls.
type GatherCallback struct {
	AgentID        string
	ConversationID string
	MessageID      string
	CallSid        string
	SpeechResult   string
}

// ParseGatherCallback reads the form body first and falls back to the query.
// A body that fails to parse is ignored; the query still applies.
func ParseGatherCallback(r *http.Request) GatherCallback {
	_ = r.ParseForm()
	return GatherCallback{
		AgentID:        strings.TrimSpace(r.URL.Query().Get("agentId")),
		ConversationID: Param(r, "conversationId"),
		MessageID:      Param(r, "messageId"),
		CallSid:        Param(r, "CallSid"),
		SpeechResult:   Param(r, "SpeechResult"),
	}
}

// Param returns key from the POST form if present, otherwise from the query.
// ParseForm must have been called.
func Param(r *http.Request, key string) string {
	if v := strings.TrimSpace(r.PostForm.Get(key)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(key))
}
