package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a shell hook when none is configured.
const DefaultCommandTimeout = 10 * time.Second

// CommandSpec configures a shell command run on an event.
type CommandSpec struct {
	Event   string
	Command string
	Timeout time.Duration
}

// CommandHandler returns a Handler that runs hc.Command through sh with
// the JSON payload on stdin.
func CommandHandler(hc CommandSpec) Handler {
	timeout := hc.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", hc.Command)
		cmd.WaitDelay = time.Second
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(cmd.Environ(), "VALIDADE_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", hc.Command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", hc.Command, err)
		}
		return nil
	}
}

// RegisterCommands adds a command handler for each entry. Unknown events
// are rejected.
func (m *Manager) RegisterCommands(specs []CommandSpec) error {
	for i, hc := range specs {
		if !Known(hc.Event) {
			return fmt.Errorf("hook %d: unknown event %q", i, hc.Event)
		}
		if strings.TrimSpace(hc.Command) == "" {
			return fmt.Errorf("hook %d: empty command", i)
		}
		m.On(hc.Event, fmt.Sprintf("command-%d", i), CommandHandler(hc))
	}
	return nil
}
