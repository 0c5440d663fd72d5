// Package agent talks to the ElevenLabs conversational agent API.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-relay/internal/apperr"
)

// Sender labels expected by the agent API.
const (
	SenderHuman     = "Human"
	SenderAssistant = "Assistant"
)

// Message is one transcript entry in the agent API's shape.
type Message struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// Reply is the agent's next utterance.
type Reply struct {
	Text     string
	AudioURL string
}

// Talker produces the next agent reply for a transcript.
type Talker interface {
	Reply(ctx context.Context, agentID string, history []Message) (Reply, error)
}

var (
	ErrNoAPIKey  = apperr.New(apperr.KindConfiguration, "ElevenLabs API key is not configured")
	ErrMalformed = apperr.New(apperr.KindProvider, "Malformed agent response")
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.elevenlabs.io/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{apiKey: cfg.APIKey, baseURL: base, httpClient: &http.Client{Timeout: timeout}}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type talkRequest struct {
	History          []Message        `json:"history"`
	VoiceSettings    voiceSettings    `json:"voice_settings"`
	GenerationConfig generationConfig `json:"generation_config"`
}

type talkResponse struct {
	Output *struct {
		Text     string `json:"text"`
		AudioURL string `json:"audio_url"`
	} `json:"output"`
}

// Reply sends the full transcript and returns the agent's answer.
// An empty history asks for the greeting.
func (c *Client) Reply(ctx context.Context, agentID string, history []Message) (Reply, error) {
	if c.apiKey == "" {
		return Reply{}, ErrNoAPIKey
	}
	if history == nil {
		history = []Message{}
	}
	body, err := json.Marshal(talkRequest{
		History:          history,
		VoiceSettings:    voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		GenerationConfig: generationConfig{Temperature: 0.7, MaxTokens: 100},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/projects/" + url.PathEscape(agentID) + "/talk"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, apperr.Provider("Failed to get agent response", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, apperr.Provider("Failed to get agent response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reply{}, apperr.Provider("Failed to get agent response", errors.New(errorDetail(raw)))
	}

	var out talkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Reply{}, apperr.Wrap(ErrMalformed, err)
	}
	if out.Output == nil || strings.TrimSpace(out.Output.Text) == "" {
		return Reply{}, apperr.Wrap(ErrMalformed, errors.New("output.text is empty"))
	}
	return Reply{Text: out.Output.Text, AudioURL: out.Output.AudioURL}, nil
}

// errorDetail extracts the API's detail field; non-JSON bodies get a generic message.
func errorDetail(raw []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil && s != "" {
			return s
		}
		return string(e.Detail)
	}
	return "Failed to get agent response"
}
