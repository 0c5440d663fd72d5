package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration required by the API process.
// Values come from the environment, with an optional .env file underneath.
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Twilio     TwilioConfig
	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
}

type AppConfig struct {
	Env  string
	Port int

	// BaseURL is the canonical public URL the telephony provider calls back on.
	// Callback URLs are never derived from request headers.
	BaseURL string

	HTTPClientTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. Without a host the audio store falls back to
// memory and the duplicate-dial guard is off.
type RedisConfig struct {
	Host string
	Port int
}

// AuthConfig protects the /v1 operator API. An empty JWTSecret disables auth.
type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	ValidateSignature bool
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type ElevenLabsConfig struct {
	APIKey         string
	BaseURL        string
	DefaultAgentID string
}

// Load reads .env (if present), then the environment, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("HTTP_CLIENT_TIMEOUT", "30s")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1")
	v.SetDefault("TWILIO_VALIDATE_SIGNATURE", false)

	c := Config{}
	var parseErrs []error

	c.App.Env = str(v, "APP_ENV")
	c.App.Port, parseErrs = appendParseErr(parseErrs)(mustInt(v, "APP_PORT"))
	c.App.BaseURL = strings.TrimRight(str(v, "PUBLIC_BASE_URL"), "/")
	{
		d, err := duration(v, "HTTP_CLIENT_TIMEOUT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.App.HTTPClientTimeout = d
	}

	c.DB.Host = str(v, "DB_HOST")
	c.DB.Port, parseErrs = appendParseErr(parseErrs)(mustInt(v, "DB_PORT"))
	c.DB.User = str(v, "DB_USER")
	c.DB.Password = v.GetString("DB_PASSWORD")
	c.DB.Name = str(v, "DB_NAME")
	c.DB.SSLMode = str(v, "DB_SSLMODE")

	c.Redis.Host = str(v, "REDIS_HOST")
	c.Redis.Port, parseErrs = appendParseErr(parseErrs)(mustInt(v, "REDIS_PORT"))

	c.Auth.JWTSecret = v.GetString("JWT_SECRET")
	c.Auth.JWTIssuer = str(v, "JWT_ISSUER")
	c.Auth.JWTAudience = str(v, "JWT_AUDIENCE")
	// Optional; defaults are applied in Validate().
	if d, err := duration(v, "JWT_ACCESS_TTL"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.Auth.AccessTokenTTL = d
	}
	if d, err := duration(v, "JWT_REFRESH_TTL"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.Auth.RefreshTokenTTL = d
	}

	c.Twilio.AccountSID = str(v, "TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = v.GetString("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = str(v, "TWILIO_PHONE_NUMBER")
	c.Twilio.ValidateSignature = v.GetBool("TWILIO_VALIDATE_SIGNATURE")

	c.OpenAI.APIKey = v.GetString("OPENAI_API_KEY")
	c.OpenAI.BaseURL = strings.TrimRight(str(v, "OPENAI_BASE_URL"), "/")

	c.ElevenLabs.APIKey = v.GetString("ELEVENLABS_API_KEY")
	c.ElevenLabs.BaseURL = strings.TrimRight(str(v, "ELEVENLABS_BASE_URL"), "/")
	c.ElevenLabs.DefaultAgentID = str(v, "ELEVENLABS_DEFAULT_AGENT_ID")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	} else if u, err := url.Parse(c.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.App.BaseURL))
	} else if c.IsProduction() && u.Scheme != "https" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL must use https in production"))
	}
	if c.App.HTTPClientTimeout <= 0 {
		c.App.HTTPClientTimeout = 30 * time.Second
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.Auth.JWTSecret != "" && c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.ValidateSignature && c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_VALIDATE_SIGNATURE is set"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresURL is the URL form of the DSN, as golang-migrate expects it.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

func str(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func mustInt(v *viper.Viper, key string) (int, error) {
	s := str(v, key)
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return n, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	s := str(v, key)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, s)
	}
	return d, nil
}

func appendParseErr(errs []error) func(int, error) (int, []error) {
	return func(n int, err error) (int, []error) {
		if err != nil {
			return n, append(errs, err)
		}
		return n, errs
	}
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
