package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/llm"
	"github.com/soyeahso/validade/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show validade status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "validade %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}

			if cfg.Gateway.Enabled {
				fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s\n",
					cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)
			} else {
				fmt.Fprintln(out, "Gateway:   disabled")
			}
			if cfg.Metrics.Enabled {
				fmt.Fprintf(out, "Metrics:   %s\n", cfg.Metrics.Path)
			}

			if irc := cfg.Channels.IRC; irc != nil {
				fmt.Fprintf(out, "IRC:       server=%s nick=%s channels=%s tls=%v\n",
					irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
			} else {
				fmt.Fprintln(out, "IRC:       (not configured)")
			}

			switch cfg.Storage.Driver {
			case "postgres":
				fmt.Fprintln(out, "Storage:   postgres")
			default:
				fmt.Fprintf(out, "Storage:   sqlite %s\n", paths.DatabasePath(cfg.Storage))
			}

			fmt.Fprintf(out, "Reminders: %s at %s\n", cfg.Reminders.Timezone, cfg.Reminders.FireAt)
			idle := "never"
			if d := cfg.Session.IdleTimeout(); d > 0 {
				idle = d.String()
			}
			fmt.Fprintf(out, "Sessions:  max=%d idle=%s\n", cfg.Session.MaxSessions, idle)

			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			if providers := registry.List(); len(providers) > 0 {
				fmt.Fprintf(out, "LLM:       %s\n", strings.Join(providers, ", "))
			} else {
				fmt.Fprintln(out, "LLM:       (none configured)")
			}
			fmt.Fprintf(out, "Extract:   text=%s image=%s\n", cfg.Extraction.Text, cfg.Extraction.Image)
			if n := len(cfg.Hooks.Commands); n > 0 {
				fmt.Fprintf(out, "Hooks:     %d command(s)\n", n)
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	return cmd
}
