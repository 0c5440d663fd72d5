package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080, BaseURL: "http://localhost:8080"},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voice"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "PUBLIC_BASE_URL", "DB_HOST"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_ProductionRequiresSSLModeAndHTTPS(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTSecret = "secret"
	c.Auth.JWTIssuer = "voice-relay"
	c.Auth.JWTAudience = "operators"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	if !strings.Contains(err.Error(), "https") {
		t.Fatalf("expected https complaint, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.App.HTTPClientTimeout != 30*time.Second {
		t.Fatalf("expected 30s client timeout, got %v", c.App.HTTPClientTimeout)
	}
	if c.AuthEnabled() {
		t.Fatalf("expected auth disabled without secret")
	}
}

func TestValidate_SignatureNeedsAuthToken(t *testing.T) {
	c := validConfig()
	c.Twilio.ValidateSignature = true
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error without TWILIO_AUTH_TOKEN")
	}
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	v.Set("APP_ENV", "dev")
	v.Set("PUBLIC_BASE_URL", "https://calls.example.com/")
	v.Set("DB_HOST", "db")
	v.Set("DB_USER", "voice")
	v.Set("DB_NAME", "voice")
	v.Set("TWILIO_PHONE_NUMBER", "+15550001111")
	v.Set("JWT_ACCESS_TTL", "10m")

	c, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.App.BaseURL != "https://calls.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.App.BaseURL)
	}
	if c.App.Port != 8080 || c.DB.Port != 5432 {
		t.Fatalf("expected default ports, got %d/%d", c.App.Port, c.DB.Port)
	}
	if c.ElevenLabs.BaseURL != "https://api.elevenlabs.io/v1" {
		t.Fatalf("unexpected elevenlabs base %q", c.ElevenLabs.BaseURL)
	}
	if c.Auth.AccessTokenTTL != 10*time.Minute {
		t.Fatalf("unexpected access ttl %v", c.Auth.AccessTokenTTL)
	}
	if c.RedisEnabled() {
		t.Fatalf("expected redis disabled without host")
	}
}

func TestFromViper_BadInt(t *testing.T) {
	v := viper.New()
	v.Set("APP_PORT", "eighty")
	if _, err := FromViper(v); err == nil || !strings.Contains(err.Error(), "APP_PORT must be an integer") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestPostgresURL(t *testing.T) {
	c := validConfig()
	c.DB.SSLMode = "disable"
	got := c.PostgresURL()
	if got != "postgres://postgres:x@localhost:5432/voice?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}
}
