package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Answer question groups interactively",
	Long: `Walks through one or more groups on the terminal. Sessions are saved to the
configured store and can be resumed with --session.

At any prompt: an empty line keeps the current answer, "back" returns to the
previous page, "add <set>" adds an instance of a repeatable set and "quit" exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		groups, _ := cmd.Flags().GetStringSlice("group")
		headless, _ := cmd.Flags().GetBool("headless")
		fresh, _ := cmd.Flags().GetBool("fresh")
		jsonMode, _ := cmd.Flags().GetBool("json")

		return cli.Execute(cli.RunOptions{
			Options:   globalOptions(cmd, args),
			SessionID: sessionID,
			Groups:    groups,
			Headless:  headless,
			Fresh:     fresh,
			JSON:      jsonMode,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session ID to resume (default: a new one)")
	runCmd.Flags().StringSliceP("group", "g", nil, "Groups of the flow, in order (default: all)")
	runCmd.Flags().Bool("headless", false, "Run in headless mode (no banner or system messages)")
	runCmd.Flags().Bool("json", false, "Run in JSON mode (JSON Lines commands on stdin, events on stdout)")
	runCmd.Flags().Bool("fresh", false, "Discard the stored session before starting")
}
