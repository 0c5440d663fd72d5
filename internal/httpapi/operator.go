package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-relay/internal/audit"
	"voice-relay/internal/calls"
	"voice-relay/internal/conversations"
	"voice-relay/internal/reporting"
	"voice-relay/internal/speech"
	"voice-relay/internal/telephony"
	"voice-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	debugCallCount   = 5
)

func (h Handlers) CreateCall(c *gin.Context) {
	var req calls.PlaceCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	call, err := h.Calls.PlaceCall(c.Request.Context(), req)
	if call.ID != "" {
		logger.Annotate(c, "message_id", call.ID)
		h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeCallPlaced, CallID: call.ID, Message: "call " + string(call.Status)})
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

type quickCallRequest struct {
	Destination string `json:"phoneNumber"`
}

func (h Handlers) QuickCall(c *gin.Context) {
	var req quickCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	call, err := h.Calls.QuickCall(c.Request.Context(), req.Destination)
	if call.ID != "" {
		logger.Annotate(c, "message_id", call.ID)
		h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeCallPlaced, CallID: call.ID, Message: "quick call " + string(call.Status)})
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

// listLimit reads ?limit, capped at maxListLimit. It writes the 400 itself.
func listLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	list, err := h.Calls.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list})
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// CallsSummary counts calls per status. The range defaults to the last 24 hours.
func (h Handlers) CallsSummary(c *gin.Context) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.Add(-24 * time.Hour), To: now}
	for key, dst := range map[string]*time.Time{"from": &rng.From, "to": &rng.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be an RFC 3339 timestamp"})
			return
		}
		*dst = t
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{Range: rng})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// MakeCall places a call with caller-supplied instruction and status URLs.
func (h Handlers) MakeCall(c *gin.Context) {
	var req calls.DialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	logger.Annotate(c, "message_id", req.MessageID)
	sid, err := h.Calls.Dial(c.Request.Context(), req)
	if err != nil {
		h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeCallDialed, CallID: req.MessageID, Message: "dial failed"})
		writeError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeCallDialed, CallID: req.MessageID, Message: "dialed " + sid})
	c.JSON(http.StatusOK, gin.H{"success": true, "sid": sid})
}

func (h Handlers) OpenAISpeech(c *gin.Context)     { h.synthesize(c, h.OpenAI) }
func (h Handlers) ElevenLabsSpeech(c *gin.Context) { h.synthesize(c, h.ElevenLabs) }

func (h Handlers) synthesize(c *gin.Context, synth speech.Synthesizer) {
	var req speech.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(c, speech.ErrTextRequired)
		return
	}
	logger.Annotate(c, "synthesizer", synth.Name(), "chars", len([]rune(req.Text)))

	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeSpeechRequest, Message: synth.Name()})
	audio, err := synth.Synthesize(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// AgentTurn runs one agent exchange outside a phone call.
func (h Handlers) AgentTurn(c *gin.Context) {
	var req conversations.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	res, err := h.Agent.Turn(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Annotate(c, "conversation_id", res.ConversationID)
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeAgentTurn, ConversationID: res.ConversationID})
	c.JSON(http.StatusOK, res)
}

type debugCall struct {
	ID        string       `json:"id"`
	To        string       `json:"to_number"`
	Status    calls.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Debug reports which settings are present and the most recent calls with
// destinations redacted.
func (h Handlers) Debug(c *gin.Context) {
	list, err := h.Calls.List(c.Request.Context(), debugCallCount)
	if err != nil {
		writeError(c, err)
		return
	}
	recent := make([]debugCall, 0, len(list))
	for _, call := range list {
		recent = append(recent, debugCall{
			ID:        call.ID,
			To:        logger.Redact(call.To, 5),
			Status:    call.Status,
			Error:     call.Error,
			CreatedAt: call.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"environment":  h.Env,
		"recent_calls": recent,
		"timestamp":    time.Now().UTC(),
	})
}

// TwilioCheck verifies the Twilio credentials by fetching the account.
func (h Handlers) TwilioCheck(c *gin.Context) {
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeAdminAction, Message: "twilio credentials checked"})
	acct, err := h.Twilio.FetchAccount(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": acct})
}

// Conversations lists recent agent conversations with their transcripts.
func (h Handlers) Conversations(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	list, err := h.Transcripts.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

// AuditLog lists the most recent operator actions.
func (h Handlers) AuditLog(c *gin.Context) {
	if h.Audit == nil {
		c.JSON(http.StatusOK, gin.H{"events": []audit.Event{}})
		return
	}
	events, err := h.Audit.List(c.Request.Context(), defaultListLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

var _ AccountChecker = (*telephony.Client)(nil)
