package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without one
)

// Config is the root configuration for validade.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Channels   ChannelsConfig   `yaml:"channels,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Extraction ExtractionConfig `yaml:"extraction,omitempty"`
	Reminders  RemindersConfig  `yaml:"reminders,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Session    SessionConfig    `yaml:"session,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Enabled        bool        `yaml:"enabled"`
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password" | "none"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// ChannelsConfig defines channel-specific configurations.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server    string   `yaml:"server"`
	Port      int      `yaml:"port,omitempty"`
	Nick      string   `yaml:"nick"`
	Password  string   `yaml:"password,omitempty"`
	Channels  []string `yaml:"channels,omitempty"`
	UseTLS    bool     `yaml:"useTLS,omitempty"`
	SASL      bool     `yaml:"sasl,omitempty"`
	OpOnly    bool     `yaml:"opOnly,omitempty"`    // in channels, only answer operators
	AllowFrom []string `yaml:"allowFrom,omitempty"` // nick allowlist; empty allows everyone
}

// LLMConfig lists the language-model providers and which one to try first.
type LLMConfig struct {
	Primary        string                       `yaml:"primary,omitempty"`
	Fallbacks      []string                     `yaml:"fallbacks,omitempty"`
	Providers      map[string]LLMProviderConfig `yaml:"providers,omitempty"`
	MaxTokens      int                          `yaml:"maxTokens,omitempty"`
	TimeoutSeconds int                          `yaml:"timeoutSeconds,omitempty"`
}

// LLMProviderConfig defines one provider. Type defaults to the map key.
type LLMProviderConfig struct {
	Type     string   `yaml:"type,omitempty"` // "claude" | "gemini" | "ollama"
	APIKey   string   `yaml:"apiKey,omitempty"`
	Model    string   `yaml:"model"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty"`
}

// Timeout returns the per-call extraction timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExtractionConfig selects the text and image extraction sources.
type ExtractionConfig struct {
	Text        string    `yaml:"text,omitempty"`  // "llm" | "none"
	Image       string    `yaml:"image,omitempty"` // "vision" | "ocr" | "none"
	TextModel   string    `yaml:"textModel,omitempty"`
	VisionModel string    `yaml:"visionModel,omitempty"`
	OCR         OCRConfig `yaml:"ocr,omitempty"`
}

// OCRConfig configures Google Cloud Vision. Without an API key or
// credentials file, application default credentials are used.
type OCRConfig struct {
	APIKey          string `yaml:"apiKey,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	LanguageHint    string `yaml:"languageHint,omitempty"`
}

// RemindersConfig controls when reminders fire.
type RemindersConfig struct {
	Timezone           string `yaml:"timezone,omitempty"`
	FireAt             string `yaml:"fireAt,omitempty"` // "HH:MM" in Timezone
	SendTimeoutSeconds int    `yaml:"sendTimeoutSeconds,omitempty"`
}

// Location loads the reference timezone.
func (r RemindersConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("reminders.timezone: %v", err)}
	}
	return loc, nil
}

// Clock parses FireAt into hour and minute.
func (r RemindersConfig) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", r.FireAt)
	if err != nil {
		return 0, 0, &ConfigError{Message: fmt.Sprintf("reminders.fireAt must be HH:MM, got %q", r.FireAt)}
	}
	return t.Hour(), t.Minute(), nil
}

// SendTimeout bounds one notification send.
func (r RemindersConfig) SendTimeout() time.Duration {
	return time.Duration(r.SendTimeoutSeconds) * time.Second
}

// StorageConfig selects the reminder store.
type StorageConfig struct {
	Driver      string `yaml:"driver,omitempty"` // "sqlite" | "postgres"
	Path        string `yaml:"path,omitempty"`   // sqlite file; defaults under the data dir
	DatabaseURL string `yaml:"databaseUrl,omitempty"`
}

// SessionConfig defines conversation session behavior.
type SessionConfig struct {
	IdleMinutes int `yaml:"idleMinutes,omitempty"` // 0 keeps sessions until they end
	MaxSessions int `yaml:"maxSessions,omitempty"`
}

// IdleTimeout returns the idle eviction window, zero meaning never.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleMinutes) * time.Minute
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig defines event hooks.
type HooksConfig struct {
	Commands []HookEntry `yaml:"commands,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Event   string `yaml:"event"`
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// MetricsConfig controls the Prometheus endpoint on the gateway.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}
