package main

import (
	"database/sql"
	"time"

	"voice-relay/internal/agent"
	"voice-relay/internal/audit"
	"voice-relay/internal/auth"
	"voice-relay/internal/calls"
	"voice-relay/internal/config"
	"voice-relay/internal/conversations"
	"voice-relay/internal/httpapi"
	"voice-relay/internal/instructions"
	"voice-relay/internal/reporting"
	"voice-relay/internal/speech"
	"voice-relay/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// dialGuardTTL bounds how long a crashed request can block a destination.
const dialGuardTTL = 30 * time.Second

type securityDeps struct {
	tokens    *auth.Manager
	signature gin.HandlerFunc
}

type deps struct {
	db       *sql.DB
	rdb      *redis.Client // nil when Redis is disabled
	security securityDeps
}

// registerRoutes builds the services and wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, cfg config.Config, d deps) {
	timeout := cfg.App.HTTPClientTimeout

	twilio := telephony.NewClient(telephony.ClientConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		Timeout:    timeout,
	})
	openAI := speech.NewOpenAI(speech.ClientConfig{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL, Timeout: timeout})
	elevenCfg := speech.ClientConfig{APIKey: cfg.ElevenLabs.APIKey, BaseURL: cfg.ElevenLabs.BaseURL, Timeout: timeout}
	elevenDirect := speech.NewElevenLabs(elevenCfg, speech.DefaultElevenLabsVoice)
	elevenCalls := elevenDirect.WithFallbackVoice(speech.DefaultCallVoice)
	talker := agent.NewClient(agent.Config{APIKey: cfg.ElevenLabs.APIKey, BaseURL: cfg.ElevenLabs.BaseURL, Timeout: timeout})

	var (
		store speech.AudioStore = speech.NewMemoryAudioStore()
		opts  []calls.Option
	)
	if d.rdb != nil {
		store = speech.NewRedisAudioStore(d.rdb)
		opts = append(opts, calls.WithGuard(calls.NewRedisGuard(d.rdb, dialGuardTTL)))
	}

	callRepo := calls.NewPostgresRepo(d.db)
	callSvc := calls.NewService(callRepo, twilio, calls.Settings{
		BaseURL:        cfg.App.BaseURL,
		FromNumber:     cfg.Twilio.PhoneNumber,
		DefaultAgentID: cfg.ElevenLabs.DefaultAgentID,
	}, opts...)

	convRepo := conversations.NewPostgresRepo(d.db)
	engine := conversations.NewEngine(convRepo, talker, conversations.EngineSettings{
		BaseURL:        cfg.App.BaseURL,
		DefaultAgentID: cfg.ElevenLabs.DefaultAgentID,
	})
	audio := instructions.AudioProducer{Calls: callSvc, Synth: elevenCalls, Store: store, BaseURL: cfg.App.BaseURL}

	h := httpapi.Handlers{
		Calls:        callSvc,
		Instructions: instructions.NewProvider(instructions.SpeechProducer{Calls: callSvc}, audio, engine),
		Audio:        audio,
		Agent:        engine,
		Transcripts:  convRepo,
		Reports:      reporting.NewService(callRepo),
		OpenAI:       openAI,
		ElevenLabs:   elevenDirect,
		Twilio:       twilio,
		Env:          envPresence(cfg),
		Audit:        audit.NewService(audit.NewPostgresRepo(d.db)),
	}

	httpapi.Register(r, h, httpapi.Security{Tokens: d.security.tokens, Signature: d.security.signature})
}

func envPresence(cfg config.Config) map[string]bool {
	return map[string]bool{
		"TWILIO_ACCOUNT_SID":          cfg.Twilio.AccountSID != "",
		"TWILIO_AUTH_TOKEN":           cfg.Twilio.AuthToken != "",
		"TWILIO_PHONE_NUMBER":         cfg.Twilio.PhoneNumber != "",
		"OPENAI_API_KEY":              cfg.OpenAI.APIKey != "",
		"ELEVENLABS_API_KEY":          cfg.ElevenLabs.APIKey != "",
		"ELEVENLABS_DEFAULT_AGENT_ID": cfg.ElevenLabs.DefaultAgentID != "",
		"PUBLIC_BASE_URL":             cfg.App.BaseURL != "",
		"REDIS_HOST":                  cfg.RedisEnabled(),
		"JWT_SECRET":                  cfg.AuthEnabled(),
	}
}
