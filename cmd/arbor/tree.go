package main

import (
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree <group>",
	Short: "Print the logic tree of a group",
	Long: `Prints the logic tree of a group as an indented outline, a Mermaid
flowchart, or its serialized JSON/YAML form.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		stack, err := cli.Open(cmd.Context(), globalOptions(cmd, nil), cli.LogText)
		if err != nil {
			return err
		}
		defer stack.Close()

		style := graph.Style{}
		if tui.IsTerminal(os.Stdout) {
			style = tui.TreeStyle(termenv.EnvColorProfile())
		}
		return cli.Tree(cmd.Context(), stack.Engine, cmd.OutOrStdout(), args[0], format, style)
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().StringP("format", "f", cli.FormatOutline, "Output format (outline, mermaid, json, yaml)")
}
