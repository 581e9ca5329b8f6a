package config

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// secretRef is a ${NAME} reference inside a credential field.
var secretRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes set variables and keeps unset references
// verbatim, so a typo shows up in the value rather than as "".
func expandEnvVars(s string) string {
	return secretRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := secretRef.FindStringSubmatch(ref)[1]
		return cmp.Or(os.Getenv(name), ref)
	})
}

// expandSensitiveFields resolves ${NAME} in the credential fields, so
// secrets can stay out of the file.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
	for name, p := range cfg.LLM.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		cfg.LLM.Providers[name] = p
	}
	cfg.Extraction.OCR.APIKey = expandEnvVars(cfg.Extraction.OCR.APIKey)
	cfg.Storage.DatabaseURL = expandEnvVars(cfg.Storage.DatabaseURL)
}

// Load reads path through Parse. A missing file is not an error: the
// result is the defaults plus environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, nil
	case err != nil:
		return Defaults(), err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and applies environment overrides.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "parse: " + err.Error()}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields that an explicit file may have
// cleared.
func applyDefaults(cfg *Config) {
	d := Defaults()
	cfg.Gateway.Port = cmp.Or(cfg.Gateway.Port, d.Gateway.Port)
	cfg.Gateway.Bind = cmp.Or(cfg.Gateway.Bind, d.Gateway.Bind)
	cfg.Gateway.Auth.Mode = cmp.Or(cfg.Gateway.Auth.Mode, d.Gateway.Auth.Mode)
	cfg.LLM.MaxTokens = cmp.Or(cfg.LLM.MaxTokens, d.LLM.MaxTokens)
	cfg.LLM.TimeoutSeconds = cmp.Or(cfg.LLM.TimeoutSeconds, d.LLM.TimeoutSeconds)
	cfg.Extraction.Text = cmp.Or(cfg.Extraction.Text, d.Extraction.Text)
	cfg.Extraction.Image = cmp.Or(cfg.Extraction.Image, d.Extraction.Image)
	cfg.Reminders.Timezone = cmp.Or(cfg.Reminders.Timezone, d.Reminders.Timezone)
	cfg.Reminders.FireAt = cmp.Or(cfg.Reminders.FireAt, d.Reminders.FireAt)
	cfg.Reminders.SendTimeoutSeconds = cmp.Or(cfg.Reminders.SendTimeoutSeconds, d.Reminders.SendTimeoutSeconds)
	cfg.Storage.Driver = cmp.Or(cfg.Storage.Driver, d.Storage.Driver)
	cfg.Session.MaxSessions = cmp.Or(cfg.Session.MaxSessions, d.Session.MaxSessions)
	cfg.Logging.Level = cmp.Or(cfg.Logging.Level, d.Logging.Level)
	cfg.Logging.ConsoleStyle = cmp.Or(cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)
	cfg.Metrics.Path = cmp.Or(cfg.Metrics.Path, d.Metrics.Path)
}

// envOverrides maps VALIDADE_* variables onto fields. A set, non-empty
// variable wins over the file.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"VALIDADE_GATEWAY_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}},
	{"VALIDADE_GATEWAY_BIND", func(c *Config, v string) { c.Gateway.Bind = v }},
	{"VALIDADE_GATEWAY_TOKEN", func(c *Config, v string) { c.Gateway.Auth.Token = v }},
	{"VALIDADE_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"VALIDADE_TIMEZONE", func(c *Config, v string) { c.Reminders.Timezone = v }},
	{"VALIDADE_FIRE_AT", func(c *Config, v string) { c.Reminders.FireAt = v }},
	{"VALIDADE_STORAGE_DRIVER", func(c *Config, v string) { c.Storage.Driver = strings.ToLower(v) }},
	{"VALIDADE_DATABASE_URL", func(c *Config, v string) { c.Storage.DatabaseURL = v }},
	{"VALIDADE_LLM_PRIMARY", func(c *Config, v string) { c.LLM.Primary = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}
