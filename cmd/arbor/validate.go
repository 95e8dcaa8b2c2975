package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check question groups for broken logic",
	Long: `Loads every group and reports dangling references, identifier collisions,
unknown operators and conditionals that can never apply.
Exits non-zero when an error is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		watch, _ := cmd.Flags().GetBool("watch")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		stack, err := cli.Open(ctx, globalOptions(cmd, args), cli.LogText)
		if err != nil {
			return err
		}
		defer stack.Close()

		if watch {
			return cli.WatchValidate(ctx, stack.Engine, cmd.OutOrStdout())
		}
		return cli.Validate(ctx, stack.Engine, cmd.OutOrStdout(), format)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("format", "f", cli.FormatText, "Output format (text, json)")
	validateCmd.Flags().BoolP("watch", "w", false, "Re-validate groups as they change")
}
