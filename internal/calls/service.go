package calls

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"voice-relay/internal/apperr"
	"voice-relay/pkg/logger"
)

// Dial is one outbound call request handed to the telephony provider.
type Dial struct {
	To             string
	From           string
	URL            string
	StatusCallback string
}

// Dialer places outbound calls and returns the provider call id.
type Dialer interface {
	PlaceCall(ctx context.Context, d Dial) (string, error)
}

// Settings carries the deployment values the orchestrator needs.
type Settings struct {
	// BaseURL is the canonical public URL; callbacks are built from it only.
	BaseURL        string
	FromNumber     string
	DefaultAgentID string
}

// Service owns call placement and status reconciliation.
type Service struct {
	repo     Repository
	dialer   Dialer
	settings Settings
	guard    DialGuard
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type Option func(*Service)

// WithGuard rejects a second placement to a destination while one is in flight.
func WithGuard(g DialGuard) Option {
	return func(s *Service) { s.guard = g }
}

func NewService(repo Repository, dialer Dialer, settings Settings, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		dialer:   dialer,
		settings: settings,
		clock:    time.Now,
	}
	s.settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	for _, o := range opts {
		o(s)
	}
	return s
}

type PlaceCallRequest struct {
	Message     string   `json:"message"`
	Destination string   `json:"phoneNumber"`
	Voice       string   `json:"voice"`
	Provider    Provider `json:"provider"`
	AgentID     string   `json:"agentId"`
}

// PlaceCall validates req, records a pending call, and dials it.
// A record exists for every request that passes validation, even when the
// provider rejects the call. On a dial failure the returned Call is the
// failed record and the error carries the provider message.
func (s *Service) PlaceCall(ctx context.Context, req PlaceCallRequest) (Call, error) {
	rec, err := s.prepare(req)
	if err != nil {
		return Call{}, err
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, rec.To)
		switch {
		case errors.Is(err, ErrDestinationBusy):
			return Call{}, err
		case err != nil:
			// Guard outage must not block calls.
			logger.From(ctx).Warn("dial guard unavailable", "err", err)
		default:
			defer release()
		}
	}

	rec, err = s.repo.Insert(ctx, rec)
	if err != nil {
		return Call{}, fmt.Errorf("insert call: %w", err)
	}
	log := logger.From(ctx).With("message_id", rec.ID)
	log.Info("call record created", "to", logger.Redact(rec.To, 5), "provider", rec.Provider)

	if s.settings.FromNumber == "" {
		rec = s.fail(ctx, rec, ErrMissingOriginNumber.Msg)
		return rec, ErrMissingOriginNumber
	}

	sid, err := s.dialer.PlaceCall(ctx, Dial{
		To:             rec.To,
		From:           s.settings.FromNumber,
		URL:            s.instructionURL(rec),
		StatusCallback: s.statusURL(rec.ID),
	})
	if err != nil {
		log.Error("dial failed", "err", err)
		rec = s.fail(ctx, rec, err.Error())
		return rec, apperr.Provider("Failed to make call", err)
	}

	log.Info("call accepted by provider", "sid", sid)
	return s.accepted(ctx, rec, sid), nil
}

// QuickCall places a call with the fixed greeting and the default voice.
func (s *Service) QuickCall(ctx context.Context, destination string) (Call, error) {
	if strings.TrimSpace(destination) == "" {
		return Call{}, ErrMessageRequired
	}
	return s.PlaceCall(ctx, PlaceCallRequest{
		Message:     QuickCallBody,
		Destination: destination,
		Voice:       DefaultVoice,
		Provider:    ProviderOpenAI,
	})
}

// DialRequest is a raw placement for an existing record.
type DialRequest struct {
	To             string `json:"to"`
	From           string `json:"from"`
	URL            string `json:"url"`
	StatusCallback string `json:"statusCallback"`
	MessageID      string `json:"messageId"`
}

// Dial places a call with caller-supplied URLs. A provider failure marks the
// referenced record failed.
func (s *Service) Dial(ctx context.Context, req DialRequest) (string, error) {
	if req.To == "" || req.From == "" || req.URL == "" || req.MessageID == "" {
		return "", ErrMissingParameters
	}
	sid, err := s.dialer.PlaceCall(ctx, Dial{
		To:             req.To,
		From:           req.From,
		URL:            req.URL,
		StatusCallback: req.StatusCallback,
	})
	if err != nil {
		if _, ferr := s.MarkFailed(ctx, req.MessageID, err.Error()); ferr != nil {
			logger.From(ctx).Error("mark call failed", "message_id", req.MessageID, "err", ferr)
		}
		return "", apperr.Provider("Failed to make Twilio call", err)
	}
	return sid, nil
}

// MarkFailed moves a non-terminal record to failed with reason.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) (Call, error) {
	return s.repo.Transition(ctx, id, func(c Call) (Call, bool) {
		if c.Status.Terminal() {
			return c, false
		}
		c.Status = StatusFailed
		c.Error = reason
		return c, true
	})
}

func (s *Service) Get(ctx context.Context, id string) (Call, error) {
	if id == "" {
		return Call{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]Call, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) prepare(req PlaceCallRequest) (Call, error) {
	provider := ParseProvider(string(req.Provider))
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = DefaultVoice
	}
	rec := Call{Status: StatusPending, Voice: voice, Provider: provider}

	if provider == ProviderAgent {
		agentID := strings.TrimSpace(req.AgentID)
		if agentID == "" {
			agentID = s.settings.DefaultAgentID
		}
		if agentID == "" {
			return Call{}, ErrMissingAgentID
		}
		rec.AgentID = agentID
		rec.Body = AgentPlaceholderBody
	} else {
		if strings.TrimSpace(req.Message) == "" {
			return Call{}, ErrMessageRequired
		}
		if utf8.RuneCountInString(req.Message) > MaxBodyLength {
			return Call{}, ErrMessageTooLong
		}
		if !speakable(req.Message) {
			return Call{}, ErrMessageInvalid
		}
		rec.Body = req.Message
	}

	to, err := NormalizeDestination(req.Destination)
	if err != nil {
		return Call{}, err
	}
	rec.To = to
	return rec, nil
}

// speakable reports whether msg is valid UTF-8 made only of characters an
// XML document can carry.
func speakable(msg string) bool {
	if !utf8.ValidString(msg) {
		return false
	}
	for _, r := range msg {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20, r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return false
		}
	}
	return true
}

func (s *Service) instructionURL(c Call) string {
	if c.Provider == ProviderAgent {
		q := url.Values{"agentId": {c.AgentID}, "messageId": {c.ID}}
		return s.settings.BaseURL + "/api/twiml-conversation?" + q.Encode()
	}
	q := url.Values{"messageId": {c.ID}, "provider": {string(c.Provider)}, "voice": {c.Voice}}
	return s.settings.BaseURL + "/api/twiml?" + q.Encode()
}

func (s *Service) statusURL(id string) string {
	return s.settings.BaseURL + "/api/call-status?" + url.Values{"messageId": {id}}.Encode()
}

// fail records a dial failure. Store errors are logged and the in-memory
// record is returned so the caller still sees the real outcome.
func (s *Service) fail(ctx context.Context, rec Call, reason string) Call {
	updated, err := s.MarkFailed(ctx, rec.ID, reason)
	if err != nil {
		logger.From(ctx).Error("update call to failed", "message_id", rec.ID, "err", err)
		rec.Status = StatusFailed
		rec.Error = reason
		return rec
	}
	return updated
}

func (s *Service) accepted(ctx context.Context, rec Call, sid string) Call {
	updated, err := s.repo.Transition(ctx, rec.ID, func(c Call) (Call, bool) {
		if c.SID == "" {
			c.SID = sid
		}
		// A status callback may already have moved the record on.
		if c.Status == StatusPending {
			c.Status = StatusInProgress
		}
		return c, true
	})
	if err != nil {
		logger.From(ctx).Error("update call to in-progress", "message_id", rec.ID, "err", err)
		rec.Status = StatusInProgress
		rec.SID = sid
		return rec
	}
	return updated
}
