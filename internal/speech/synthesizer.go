package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-relay/internal/apperr"
)

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

type Request struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	// Model is only meaningful for OpenAI.
	Model string `json:"model,omitempty"`
}

var (
	ErrTextRequired = apperr.New(apperr.KindValidation, "Text is required")
	ErrNoOpenAIKey  = apperr.New(apperr.KindConfiguration, "OpenAI API key is not configured")
	ErrNoElevenKey  = apperr.New(apperr.KindConfiguration, "ElevenLabs API key is not configured")
)

type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// OpenAI calls the /audio/speech endpoint.
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAI(cfg ClientConfig) *OpenAI {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAI{apiKey: cfg.APIKey, baseURL: base, httpClient: newHTTPClient(cfg.Timeout)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextRequired
	}
	if o.apiKey == "" {
		return nil, ErrNoOpenAIKey
	}
	voice := req.Voice
	if voice == "" {
		voice = "alloy"
	}
	model := req.Model
	if model == "" {
		model = "tts-1"
	}

	body, err := json.Marshal(map[string]string{"model": model, "voice": voice, "input": req.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	return fetchAudio(o.httpClient, httpReq, "openai")
}

// ElevenLabs calls the /text-to-speech/{voice_id} endpoint.
type ElevenLabs struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	// fallbackVoice names the voice used when Request.Voice is unknown.
	fallbackVoice string
}

func NewElevenLabs(cfg ClientConfig, fallbackVoice string) *ElevenLabs {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.elevenlabs.io/v1"
	}
	if fallbackVoice == "" {
		fallbackVoice = DefaultElevenLabsVoice
	}
	return &ElevenLabs{apiKey: cfg.APIKey, baseURL: base, httpClient: newHTTPClient(cfg.Timeout), fallbackVoice: fallbackVoice}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// WithFallbackVoice returns a copy that resolves unknown voices to name.
func (e *ElevenLabs) WithFallbackVoice(name string) *ElevenLabs {
	cp := *e
	cp.fallbackVoice = name
	return &cp
}

func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextRequired
	}
	if e.apiKey == "" {
		return nil, ErrNoElevenKey
	}
	voiceID := ElevenLabsVoiceID(req.Voice, e.fallbackVoice)

	body, err := json.Marshal(map[string]string{"text": req.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/text-to-speech/"+voiceID, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	return fetchAudio(e.httpClient, httpReq, "elevenlabs")
}

func fetchAudio(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Provider("Failed to generate speech", fmt.Errorf("%s request failed: %w", provider, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Provider("Failed to generate speech", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Provider("Failed to generate speech",
			fmt.Errorf("%s returned status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if len(body) == 0 {
		return nil, apperr.Provider("Failed to generate speech", fmt.Errorf("%s returned no audio", provider))
	}
	return body, nil
}
