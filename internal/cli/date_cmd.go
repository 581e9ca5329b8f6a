package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/dates"
	"github.com/spf13/cobra"
)

func newDateCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "date <text>",
		Short: "Show how a date fragment is normalized",
		Long: "Runs the date normalizer on the text, using the configured timezone for\n" +
			"year inference, and prints the ISO date or nothing.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			loc, err := cfg.Reminders.Location()
			if err != nil {
				return err
			}
			norm := dates.New(loc)
			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if all {
				for _, d := range norm.Candidates(text) {
					fmt.Fprintf(out, "%s\t%s\n", d, d.Display())
				}
				return nil
			}
			iso := norm.Normalize(text)
			if iso == "" {
				return fmt.Errorf("no valid date in %q", text)
			}
			fmt.Fprintln(out, iso)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "print every date candidate found in the text")
	return cmd
}
