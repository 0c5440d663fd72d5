package httpapi

import (
	"voice-relay/internal/audit"
	"voice-relay/internal/auth"
	"voice-relay/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Security configures request authentication. Zero values disable each check.
type Security struct {
	// Tokens verifies operator bearer tokens on /v1.
	Tokens *auth.Manager
	// Signature guards the provider callbacks.
	Signature gin.HandlerFunc
}

// Register wires HTTP routes to handlers.
// Keep this free of business logic; handlers delegate to internal modules.
func Register(r gin.IRouter, h Handlers, sec Security) {
	r.GET("/healthz", h.Health)

	callbacks := r.Group("/api")
	if sec.Signature != nil {
		callbacks.Use(sec.Signature)
	}
	{
		callbacks.GET("/twiml", h.Script)
		callbacks.POST("/twiml", h.Script)
		callbacks.GET("/twiml-conversation", h.ConversationScript)
		callbacks.POST("/twiml-conversation", h.ConversationScript)
		callbacks.GET("/call-status", h.CallStatus)
		callbacks.POST("/call-status", h.CallStatus)
	}
	// The provider fetches audio without a signature.
	r.GET("/api/audio/:filename", h.AudioFile)

	roles := func(allowed ...string) gin.HandlersChain {
		if sec.Tokens == nil {
			return nil
		}
		return gin.HandlersChain{rbac.RequireAnyRole(allowed...)}
	}

	v1 := r.Group("/v1")
	v1.Use(clientIP)
	if sec.Tokens != nil {
		v1.Use(auth.RequireAccessToken(sec.Tokens))
	}
	{
		read := v1.Group("", roles(rbac.RoleViewer, rbac.RoleOperator)...)
		read.GET("/calls", h.ListCalls)
		read.GET("/calls/summary", h.CallsSummary)
		read.GET("/calls/:id", h.GetCall)

		write := v1.Group("", roles(rbac.RoleOperator)...)
		write.POST("/calls", h.CreateCall)
		write.POST("/calls/quick", h.QuickCall)
		write.POST("/make-call", h.MakeCall)
		write.POST("/tts/openai", h.OpenAISpeech)
		write.POST("/tts/elevenlabs", h.ElevenLabsSpeech)
		write.POST("/agent", h.AgentTurn)

		admin := v1.Group("/admin", roles(rbac.RoleAdmin)...)
		admin.GET("/debug", h.Debug)
		admin.GET("/twilio", h.TwilioCheck)
		admin.GET("/audit", h.AuditLog)
		admin.GET("/conversations", h.Conversations)
	}
}

// clientIP makes the caller's address available to the audit log.
func clientIP(c *gin.Context) {
	c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
	c.Next()
}
