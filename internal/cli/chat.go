package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soyeahso/validade/internal/channel/console"
	"github.com/soyeahso/validade/internal/store"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		persist bool
		chatID  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in this terminal",
		Long: "Runs one conversation on standard input. Send \"/foto <file> [caption]\" to\n" +
			"attach a photo of the label. Reminders are kept in memory unless --persist is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				logLevel = "warn"
			}
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			opts := store.Options{Path: store.MemoryPath}
			if persist {
				if err := paths.EnsureDirs(); err != nil {
					return err
				}
				opts = storeOptions(cfg.Storage)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, opts, log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			a.channels.Register(console.New(os.Stdin, out, chatID, log))

			fmt.Fprintln(out, "Envie o nome do produto, a data de validade ou uma foto (/foto <arquivo>). Ctrl-D sai.")
			return a.run(ctx)
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "store reminders in the configured database")
	cmd.Flags().StringVar(&chatID, "as", "", "local chat id (default \"local\")")

	return cmd
}
