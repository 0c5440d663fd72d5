package httpapi

import (
	"context"
	"net/http"

	"voice-relay/internal/apperr"
	"voice-relay/internal/audit"
	"voice-relay/internal/calls"
	"voice-relay/internal/conversations"
	"voice-relay/internal/instructions"
	"voice-relay/internal/reporting"
	"voice-relay/internal/speech"
	"voice-relay/internal/telephony"
	"voice-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, write the response.
type Handlers struct {
	Calls        *calls.Service
	Instructions *instructions.Provider
	Audio        AudioSource
	Agent        AgentTurner
	Transcripts  TranscriptLister
	Reports      *reporting.Service
	OpenAI       speech.Synthesizer
	ElevenLabs   speech.Synthesizer
	Twilio       AccountChecker
	// Audit may be nil; recording is best-effort.
	Audit *audit.Service

	// Env reports which settings are present, for the admin debug view.
	// Values are never exposed.
	Env map[string]bool
}

// AudioSource serves rendered audio for a call.
type AudioSource interface {
	Audio(ctx context.Context, messageID, voice string) ([]byte, error)
}

type AgentTurner interface {
	Turn(ctx context.Context, req conversations.TurnRequest) (conversations.TurnResult, error)
}

// TranscriptLister backs the admin conversation view.
type TranscriptLister interface {
	List(ctx context.Context, limit int) ([]conversations.Conversation, error)
}

type AccountChecker interface {
	FetchAccount(ctx context.Context) (telephony.Account, error)
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps err onto a status and a short message. Raw errors only go to logs.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	log := logger.FromGin(c)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "err", err, "kind", string(apperr.KindOf(err)))
	} else {
		log.Info("request rejected", "err", err, "kind", string(apperr.KindOf(err)))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}

func badJSON(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
}
