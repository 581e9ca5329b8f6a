package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/reminder"
	"github.com/soyeahso/validade/internal/store"
	"github.com/spf13/cobra"
)

func newRemindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reminders",
		Aliases: []string{"lembretes"},
		Short:   "List or delete stored reminders",
	}

	cmd.AddCommand(newRemindersListCmd())
	cmd.AddCommand(newRemindersDeleteCmd())
	return cmd
}

// openScheduler opens the configured store behind a scheduler that never
// arms timers. Deleting here does not reach a running bot's timers; use
// the gateway API for that.
func openScheduler(ctx context.Context) (*reminder.Scheduler, func(), error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Reminders.Location()
	if err != nil {
		return nil, nil, err
	}
	hour, minute, err := cfg.Reminders.Clock()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.OpenReminders(ctx, storeOptions(cfg.Storage), log)
	if err != nil {
		return nil, nil, err
	}
	sched := reminder.New(st, nil, reminder.Config{Location: loc, Hour: hour, Minute: minute}, log)
	return sched, func() { st.Close() }, nil
}

func newRemindersListCmd() *cobra.Command {
	var (
		chat   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders, optionally for one conversation (channel:chat)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sched, closeStore, err := openScheduler(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			list, err := sched.List(ctx, chat)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			return printReminders(cmd.OutOrStdout(), sched, list)
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "conversation id, e.g. irc:#casa")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printReminders(w io.Writer, sched *reminder.Scheduler, list []domain.Reminder) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "no reminders")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHAT\tPRODUCT\tEXPIRES\tLEAD\tFIRES\tSENT")
	for _, r := range list {
		fires := "?"
		if at, err := sched.FireAt(r); err == nil {
			fires = at.Format(time.DateTime)
		}
		sent := "-"
		if r.Sent() {
			sent = r.SentAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.ChatID, r.Product, r.ExpiresOn, r.LeadDays, fires, sent)
	}
	return tw.Flush()
}

func newRemindersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sched, closeStore, err := openScheduler(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := sched.Delete(ctx, args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("reminder %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
