package instructions

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"voice-relay/internal/calls"
	"voice-relay/internal/speech"
	"voice-relay/internal/telephony"
	"voice-relay/pkg/logger"
)

// CallLookup is the read side of the call store.
type CallLookup interface {
	Get(ctx context.Context, id string) (calls.Call, error)
}

func loadCall(ctx context.Context, lookup CallLookup, id string) (calls.Call, error) {
	if strings.TrimSpace(id) == "" {
		return calls.Call{}, calls.ErrNotFound
	}
	return lookup.Get(ctx, id)
}

// SpeechProducer speaks the call body with a Twilio built-in voice.
type SpeechProducer struct {
	Calls CallLookup
}

func (p SpeechProducer) Produce(ctx context.Context, req Request) (telephony.Document, error) {
	c, err := loadCall(ctx, p.Calls, req.MessageID)
	if err != nil {
		return telephony.Document{}, err
	}
	voice := req.Voice
	if voice == "" {
		voice = c.Voice
	}
	return telephony.NewDocument(telephony.Say{Voice: speech.TwilioVoiceFor(voice), Text: c.Body}), nil
}

// AudioProducer renders the body with a synthesizer and points the provider at it.
type AudioProducer struct {
	Calls   CallLookup
	Synth   speech.Synthesizer
	Store   speech.AudioStore
	BaseURL string
}

// Produce falls back to a built-in voice when synthesis or storage fails,
// so the callee still hears the message.
func (p AudioProducer) Produce(ctx context.Context, req Request) (telephony.Document, error) {
	c, err := loadCall(ctx, p.Calls, req.MessageID)
	if err != nil {
		return telephony.Document{}, err
	}
	voice := req.Voice
	if voice == "" {
		voice = c.Voice
	}

	key := speech.AudioKey(c.ID)
	if _, err := p.render(ctx, c, voice); err != nil {
		logger.From(ctx).Warn("audio render failed, using built-in voice", "message_id", c.ID, "err", err)
		return telephony.NewDocument(telephony.Say{Voice: "alice", Text: c.Body}), nil
	}

	u := strings.TrimRight(p.BaseURL, "/") + "/api/audio/" + key + "?" + url.Values{"voice": {voice}}.Encode()
	return telephony.NewDocument(telephony.Play{URL: u}), nil
}

// Audio returns the stored audio for a call, rendering it again on a miss.
func (p AudioProducer) Audio(ctx context.Context, messageID, voice string) ([]byte, error) {
	key := speech.AudioKey(messageID)
	if b, ok, err := p.Store.Get(ctx, key); err != nil {
		logger.From(ctx).Warn("audio store read failed", "key", key, "err", err)
	} else if ok {
		return b, nil
	}

	c, err := loadCall(ctx, p.Calls, messageID)
	if err != nil {
		return nil, err
	}
	if voice == "" {
		voice = c.Voice
	}
	audio, err := p.render(ctx, c, voice)
	if err != nil && audio != nil {
		// Serve what we rendered; the next fetch renders again.
		logger.From(ctx).Warn("audio store write failed", "key", key, "err", err)
		return audio, nil
	}
	return audio, err
}

func (p AudioProducer) render(ctx context.Context, c calls.Call, voice string) ([]byte, error) {
	audio, err := p.Synth.Synthesize(ctx, speech.Request{Text: c.Body, Voice: voice})
	if err != nil {
		return nil, err
	}
	if err := p.Store.Put(ctx, speech.AudioKey(c.ID), audio, speech.AudioTTL); err != nil {
		return audio, fmt.Errorf("store audio: %w", err)
	}
	return audio, nil
}
