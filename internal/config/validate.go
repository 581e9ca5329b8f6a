package config

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/soyeahso/validade/internal/hooks"
)

// ValidationIssue is one bad value, addressed by its key path.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return v.Path + ": " + v.Message
}

type checker []ValidationIssue

func (c *checker) add(path, format string, args ...any) {
	*c = append(*c, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// oneOf accepts v when it is listed, or empty with optional set.
func (c *checker) oneOf(path, v string, optional bool, allowed ...string) {
	if (optional && v == "") || slices.Contains(allowed, v) {
		return
	}
	c.add(path, "must be one of %v, got %q", allowed, v)
}

func (c *checker) port(path string, p int) {
	if p < 0 || p > 65535 {
		c.add(path, "port must be 0-65535, got %d", p)
	}
}

func (c *checker) nonNegative(path string, n int) {
	if n < 0 {
		c.add(path, "must not be negative")
	}
}

// Validate reports every problem in cfg, in file order. Nil means valid.
func Validate(cfg *Config) []ValidationIssue {
	var c checker
	c.gateway(&cfg.Gateway)
	c.oneOf("logging.level", cfg.Logging.Level, true, "silent", "fatal", "error", "warn", "info", "debug", "trace")
	c.oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, true, "pretty", "json")
	if cfg.Channels.IRC != nil {
		c.irc(cfg.Channels.IRC)
	}
	c.llm(&cfg.LLM)
	c.oneOf("extraction.text", cfg.Extraction.Text, false, "llm", "none")
	c.oneOf("extraction.image", cfg.Extraction.Image, false, "vision", "ocr", "none")
	c.reminders(&cfg.Reminders)

	c.oneOf("storage.driver", cfg.Storage.Driver, true, "sqlite", "postgres")
	if cfg.Storage.Driver == "postgres" && cfg.Storage.DatabaseURL == "" {
		c.add("storage.databaseUrl", "required when driver is postgres")
	}
	c.nonNegative("session.idleMinutes", cfg.Session.IdleMinutes)
	c.nonNegative("session.maxSessions", cfg.Session.MaxSessions)

	for i, h := range cfg.Hooks.Commands {
		if !hooks.Known(h.Event) {
			c.add(fmt.Sprintf("hooks.commands[%d].event", i), "unknown event %q", h.Event)
		}
		if h.Command == "" {
			c.add(fmt.Sprintf("hooks.commands[%d].command", i), "command is required")
		}
	}
	return c
}

func (c *checker) gateway(g *GatewayConfig) {
	c.port("gateway.port", g.Port)
	c.oneOf("gateway.bind", g.Bind, true, "loopback", "lan", "custom")
	if g.Bind == "custom" && g.CustomBindHost == "" {
		c.add("gateway.customBindHost", "required when bind is custom")
	}
	c.oneOf("gateway.auth.mode", g.Auth.Mode, true, "token", "password", "none")
	// An open gateway is only acceptable when nothing off-host can reach it.
	if g.Auth.Mode == "none" && g.Bind != "" && g.Bind != "loopback" {
		c.add("gateway.auth.mode", "none is only allowed with loopback bind")
	}
}

func (c *checker) irc(irc *IRCConfig) {
	if irc.Server == "" {
		c.add("channels.irc.server", "server is required")
	}
	if irc.Nick == "" {
		c.add("channels.irc.nick", "nick is required")
	}
	c.port("channels.irc.port", irc.Port)
	if irc.SASL && irc.Password == "" {
		c.add("channels.irc.sasl", "SASL requires a password to be set")
	}
}

func (c *checker) llm(l *LLMConfig) {
	for _, name := range slices.Sorted(maps.Keys(l.Providers)) {
		p := l.Providers[name]
		path := "llm.providers." + name
		typ := p.Type
		if typ == "" {
			typ = name
		}
		if !slices.Contains([]string{"claude", "gemini", "ollama"}, typ) {
			c.add(path+".type", "must be one of [claude gemini ollama], got %q", typ)
			continue
		}
		if p.Model == "" {
			c.add(path+".model", "model is required")
		}
		if typ != "ollama" && p.APIKey == "" {
			c.add(path+".apiKey", "required for %s", typ)
		}
	}
	if _, ok := l.Providers[l.Primary]; l.Primary != "" && !ok {
		c.add("llm.primary", "no provider named %q", l.Primary)
	}
	c.nonNegative("llm.timeoutSeconds", l.TimeoutSeconds)
}

func (c *checker) reminders(r *RemindersConfig) {
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		c.add("reminders.timezone", "unknown timezone %q", r.Timezone)
	}
	if _, _, err := r.Clock(); err != nil {
		c.add("reminders.fireAt", "must be HH:MM, got %q", r.FireAt)
	}
	c.nonNegative("reminders.sendTimeoutSeconds", r.SendTimeoutSeconds)
}
