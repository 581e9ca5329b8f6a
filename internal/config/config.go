// Package config loads and validates the validade YAML configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Enabled: true,
			Port:    18790,
			Bind:    "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
		LLM: LLMConfig{
			MaxTokens:      1024,
			TimeoutSeconds: 60,
		},
		Extraction: ExtractionConfig{
			Text:  "llm",
			Image: "vision",
		},
		Reminders: RemindersConfig{
			Timezone:           "America/Sao_Paulo",
			FireAt:             "09:00",
			SendTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Session: SessionConfig{
			MaxSessions: 10000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
