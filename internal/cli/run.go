package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/validade/internal/channel/irc"
	"github.com/soyeahso/validade/internal/gateway"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot on the configured channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, storeOptions(cfg.Storage), log)
			if err != nil {
				return err
			}

			if cfg.Channels.IRC != nil {
				a.channels.Register(irc.New(*cfg.Channels.IRC, log))
			}
			if cfg.Gateway.Enabled {
				opts := []gateway.ServerOption{
					gateway.WithReminders(a.sched),
					gateway.WithChannels(a.channels),
				}
				if a.metrics != nil {
					opts = append(opts, gateway.WithMetrics(a.metrics, cfg.Metrics.Path))
				}
				a.channels.Register(gateway.New(cfg.Gateway, log, opts...))
			}
			if a.channels.Count() == 0 {
				log.Warn().Msg("no channels configured; reminders fire but nobody can talk to the bot")
			}

			return a.run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
