// Package instructions answers the telephony provider's "what do I say" callback.
package instructions

import (
	"context"
	"fmt"

	"voice-relay/internal/calls"
	"voice-relay/internal/telephony"
	"voice-relay/pkg/logger"
)

// Variant selects how a script is produced. It is chosen once per request.
type Variant int

const (
	// VariantSpeech speaks the body with a Twilio built-in voice.
	VariantSpeech Variant = iota
	// VariantAudio plays audio rendered by ElevenLabs.
	VariantAudio
	// VariantAgent runs a multi-turn agent conversation.
	VariantAgent
)

func (v Variant) String() string {
	switch v {
	case VariantSpeech:
		return "speech"
	case VariantAudio:
		return "audio"
	case VariantAgent:
		return "agent"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// VariantFor maps a stored call provider onto its script variant.
func VariantFor(p calls.Provider) Variant {
	switch p {
	case calls.ProviderElevenLabs:
		return VariantAudio
	case calls.ProviderAgent:
		return VariantAgent
	default:
		return VariantSpeech
	}
}

// ParseVariant reads the provider query parameter of the instruction callback.
func ParseVariant(provider string) Variant {
	return VariantFor(calls.ParseProvider(provider))
}

// Request is everything the callback carried.
type Request struct {
	Variant        Variant
	MessageID      string
	Voice          string
	AgentID        string
	ConversationID string
	CallSid        string
	SpeechResult   string
}

// Producer builds the script for one variant.
type Producer interface {
	Produce(ctx context.Context, req Request) (telephony.Document, error)
}

// Provider dispatches to the producer for the request's variant and always
// returns a well-formed document.
type Provider struct {
	producers map[Variant]Producer
}

func NewProvider(speech, audio, agent Producer) *Provider {
	return &Provider{producers: map[Variant]Producer{
		VariantSpeech: speech,
		VariantAudio:  audio,
		VariantAgent:  agent,
	}}
}

// Respond never fails: local errors and panics become the apology-and-hangup script.
func (p *Provider) Respond(ctx context.Context, req Request) (out string) {
	log := logger.From(ctx).With("variant", req.Variant.String(), "message_id", req.MessageID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("script producer panicked", "panic", fmt.Sprint(r))
			out = telephony.FallbackXML
		}
	}()

	prod := p.producers[req.Variant]
	if prod == nil {
		log.Error("no producer for variant")
		return telephony.FallbackXML
	}

	doc, err := prod.Produce(ctx, req)
	if err != nil {
		log.Error("script producer failed", "err", err)
		return telephony.RenderOrFallback(telephony.FallbackDocument())
	}
	return telephony.RenderOrFallback(doc)
}
