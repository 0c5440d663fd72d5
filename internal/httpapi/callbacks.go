package httpapi

import (
	"net/http"

	"voice-relay/internal/instructions"
	"voice-relay/internal/speech"
	"voice-relay/internal/telephony"
	"voice-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Provider-facing callbacks. These always answer with a script or a JSON
// envelope; the provider reads nothing else.

const contentTypeXML = "text/xml"

// Script answers the instruction callback for a placed call.
func (h Handlers) Script(c *gin.Context) {
	_ = c.Request.ParseForm()
	r := c.Request
	req := instructions.Request{
		Variant:   instructions.ParseVariant(telephony.Param(r, "provider")),
		MessageID: telephony.Param(r, "messageId"),
		Voice:     telephony.Param(r, "voice"),
		AgentID:   telephony.Param(r, "agentId"),
		CallSid:   telephony.Param(r, "CallSid"),
	}
	logger.Annotate(c, "message_id", req.MessageID, "variant", req.Variant.String())

	out := h.Instructions.Respond(c.Request.Context(), req)
	c.Data(http.StatusOK, contentTypeXML, []byte(out))
}

// ConversationScript answers the first instruction callback of an agent call and
// every speech-gather callback after it.
func (h Handlers) ConversationScript(c *gin.Context) {
	cb := telephony.ParseGatherCallback(c.Request)
	req := instructions.Request{
		Variant:        instructions.VariantAgent,
		MessageID:      cb.MessageID,
		AgentID:        cb.AgentID,
		ConversationID: cb.ConversationID,
		CallSid:        cb.CallSid,
		SpeechResult:   cb.SpeechResult,
	}
	logger.Annotate(c, "conversation_id", cb.ConversationID, "call_sid", cb.CallSid)

	out := h.Instructions.Respond(c.Request.Context(), req)
	c.Data(http.StatusOK, contentTypeXML, []byte(out))
}

// CallStatus reconciles a status callback into the call record.
func (h Handlers) CallStatus(c *gin.Context) {
	cb, err := telephony.ParseStatusCallback(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form body"})
		return
	}
	logger.Annotate(c, "message_id", cb.MessageID, "call_status", cb.CallStatus)

	if _, err := h.Calls.Reconcile(c.Request.Context(), cb.MessageID, cb.CallStatus, cb.CallSid); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AudioFile serves message_{id}.mp3 for the audio variant's Play verb.
func (h Handlers) AudioFile(c *gin.Context) {
	id, ok := speech.ParseAudioKey(c.Param("filename"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid audio file name"})
		return
	}
	logger.Annotate(c, "message_id", id)

	audio, err := h.Audio.Audio(c.Request.Context(), id, c.Query("voice"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
