package conversations

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"voice-relay/internal/agent"
	"voice-relay/internal/apperr"
	"voice-relay/internal/instructions"
	"voice-relay/internal/telephony"
	"voice-relay/pkg/logger"
)

// State is derived from the stored transcript; it is never persisted.
type State int

const (
	StateNoConversation State = iota
	StateAwaitingFirstSpeech
	StateAwaitingNextSpeech
)

func (s State) String() string {
	switch s {
	case StateNoConversation:
		return "no-conversation"
	case StateAwaitingFirstSpeech:
		return "awaiting-first-speech"
	case StateAwaitingNextSpeech:
		return "awaiting-next-speech"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateOf reports where a conversation stands. A record whose greeting was
// never stored has not started.
func StateOf(c *Conversation) State {
	if c == nil || len(c.History) == 0 {
		return StateNoConversation
	}
	for _, t := range c.History {
		if t.Role == RoleCaller {
			return StateAwaitingNextSpeech
		}
	}
	return StateAwaitingFirstSpeech
}

type Transition int

const (
	// TransitionStart: no conversation id yet.
	TransitionStart Transition = iota
	// TransitionContinue: conversation id and a caller utterance.
	TransitionContinue
	// TransitionNoInput: conversation id but the caller said nothing usable.
	TransitionNoInput
)

func (t Transition) String() string {
	switch t {
	case TransitionStart:
		return "start"
	case TransitionContinue:
		return "continue"
	case TransitionNoInput:
		return "no-input"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// Classify picks the transition a callback triggers.
func Classify(req instructions.Request) Transition {
	switch {
	case req.ConversationID == "":
		return TransitionStart
	case strings.TrimSpace(req.SpeechResult) != "":
		return TransitionContinue
	default:
		return TransitionNoInput
	}
}

const (
	gatherPrompt  = "Please speak after the beep."
	noInputPrompt = "I didn't catch that. Please speak after the beep."
	gatherTimeout = 5
)

var (
	ErrMissingAgentID    = apperr.New(apperr.KindValidation, "No agent ID provided or configured")
	ErrMissingParameters = apperr.New(apperr.KindValidation, "Missing required parameters")
	ErrNotStarted        = apperr.New(apperr.KindConflict, "Conversation has not started")
	ErrMissingCallSid    = apperr.New(apperr.KindValidation, "CallSid is required to start a conversation")
)

type EngineSettings struct {
	BaseURL        string
	DefaultAgentID string
}

// Engine drives multi-turn agent calls. It is the only writer of transcripts.
type Engine struct {
	repo     Repository
	talker   agent.Talker
	settings EngineSettings
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewEngine(repo Repository, talker agent.Talker, settings EngineSettings) *Engine {
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	return &Engine{repo: repo, talker: talker, settings: settings, clock: time.Now}
}

// Produce implements instructions.Producer for the agent variant.
// Every error is left to the instruction provider, which renders the fallback.
func (e *Engine) Produce(ctx context.Context, req instructions.Request) (telephony.Document, error) {
	agentID := e.agentID(req.AgentID)
	if agentID == "" {
		return telephony.Document{}, ErrMissingAgentID
	}

	tr := Classify(req)
	ctx = logger.With(ctx, logger.From(ctx).With("transition", tr.String(), "agent_id", agentID))

	switch tr {
	case TransitionStart:
		return e.handleStart(ctx, agentID, req)
	case TransitionContinue:
		return e.handleContinue(ctx, agentID, req)
	default:
		return e.handleNoInput(agentID, req.ConversationID), nil
	}
}

func (e *Engine) handleStart(ctx context.Context, agentID string, req instructions.Request) (telephony.Document, error) {
	callSid := strings.TrimSpace(req.CallSid)
	if callSid == "" {
		logger.From(ctx).Warn("start callback without CallSid rejected")
		return telephony.Document{}, ErrMissingCallSid
	}
	conv, err := e.repo.Create(ctx, Conversation{AgentID: agentID, CallSid: callSid})
	if err != nil {
		return telephony.Document{}, fmt.Errorf("create conversation: %w", err)
	}
	logger.From(ctx).Info("conversation started", "conversation_id", conv.ID, "call_sid", callSid)

	reply, err := e.reply(ctx, agentID, &conv)
	if err != nil {
		return telephony.Document{}, err
	}
	return e.speakAndGather(agentID, conv.ID, reply.Text), nil
}

func (e *Engine) handleContinue(ctx context.Context, agentID string, req instructions.Request) (telephony.Document, error) {
	conv, err := e.repo.Get(ctx, req.ConversationID)
	if err != nil {
		return telephony.Document{}, err
	}
	state := StateOf(&conv)
	ctx = logger.With(ctx, logger.From(ctx).With("state", state.String(), "conversation_id", conv.ID))
	if state == StateNoConversation {
		logger.From(ctx).Warn("caller spoke before the greeting was stored")
		return telephony.Document{}, ErrNotStarted
	}
	if err := e.appendCaller(ctx, &conv, req.SpeechResult); err != nil {
		return telephony.Document{}, err
	}
	reply, err := e.reply(ctx, agentID, &conv)
	if err != nil {
		return telephony.Document{}, err
	}
	return e.speakAndGather(agentID, conv.ID, reply.Text), nil
}

// handleNoInput re-prompts without touching the store or the agent.
func (e *Engine) handleNoInput(agentID, conversationID string) telephony.Document {
	return telephony.NewDocument(e.gather(agentID, conversationID, noInputPrompt))
}

// appendCaller persists the caller turn before the agent is asked, so the
// utterance survives an agent failure.
func (e *Engine) appendCaller(ctx context.Context, conv *Conversation, utterance string) error {
	conv.Append(RoleCaller, utterance, e.clock().UTC())
	if err := e.repo.SaveTranscript(ctx, conv.ID, conv.History); err != nil {
		return fmt.Errorf("save caller turn: %w", err)
	}
	return nil
}

// reply sends the transcript to the agent, then appends and persists its answer.
func (e *Engine) reply(ctx context.Context, agentID string, conv *Conversation) (agent.Reply, error) {
	reply, err := e.talker.Reply(ctx, agentID, AgentHistory(conv.History))
	if err != nil {
		return agent.Reply{}, err
	}
	conv.Append(RoleAgent, reply.Text, e.clock().UTC())
	if err := e.repo.SaveTranscript(ctx, conv.ID, conv.History); err != nil {
		return agent.Reply{}, fmt.Errorf("save agent turn: %w", err)
	}
	logger.From(ctx).Debug("agent replied", "conversation_id", conv.ID, "turns", len(conv.History))
	return reply, nil
}

func (e *Engine) speakAndGather(agentID, conversationID, text string) telephony.Document {
	return telephony.NewDocument(
		telephony.Say{Text: text},
		e.gather(agentID, conversationID, gatherPrompt),
	)
}

func (e *Engine) gather(agentID, conversationID, prompt string) telephony.Gather {
	q := url.Values{"agentId": {agentID}, "conversationId": {conversationID}}
	return telephony.Gather{
		Input:   "speech",
		Timeout: gatherTimeout,
		Action:  e.settings.BaseURL + "/api/twiml-conversation?" + q.Encode(),
		Method:  "POST",
		Prompt:  &telephony.Say{Text: prompt},
	}
}

func (e *Engine) agentID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return e.settings.DefaultAgentID
}

type TurnRequest struct {
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
	CallSid        string `json:"callSid"`
	UserInput      string `json:"userInput"`
}

type TurnResult struct {
	Message        string  `json:"message"`
	ConversationID string  `json:"conversationId"`
	Audio          *string `json:"audio"`
}

// Turn runs one exchange outside a phone call: it loads or creates the
// conversation, records the optional user input and returns the agent reply.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	var (
		conv Conversation
		err  error
	)
	agentID := e.agentID(req.AgentID)

	switch {
	case req.ConversationID != "":
		conv, err = e.repo.Get(ctx, req.ConversationID)
		if err != nil {
			return TurnResult{}, err
		}
		if strings.TrimSpace(req.AgentID) == "" && conv.AgentID != "" {
			agentID = conv.AgentID
		}
		if agentID == "" {
			return TurnResult{}, ErrMissingAgentID
		}
	case req.CallSid != "":
		if agentID == "" {
			return TurnResult{}, ErrMissingAgentID
		}
		conv, err = e.repo.Create(ctx, Conversation{AgentID: agentID, CallSid: req.CallSid})
		if err != nil {
			return TurnResult{}, fmt.Errorf("create conversation: %w", err)
		}
	default:
		if agentID == "" {
			return TurnResult{}, ErrMissingAgentID
		}
		return TurnResult{}, ErrMissingParameters
	}

	if strings.TrimSpace(req.UserInput) != "" {
		if err := e.appendCaller(ctx, &conv, req.UserInput); err != nil {
			return TurnResult{}, err
		}
	}
	reply, err := e.reply(ctx, agentID, &conv)
	if err != nil {
		return TurnResult{}, err
	}

	out := TurnResult{Message: reply.Text, ConversationID: conv.ID}
	if reply.AudioURL != "" {
		out.Audio = &reply.AudioURL
	}
	return out, nil
}
