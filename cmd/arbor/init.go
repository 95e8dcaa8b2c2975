package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a project with a config file and a sample group",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := globalOptions(cmd, args).Dir
		if dir == "" {
			dir = "."
		}
		return cli.Init(cmd.Context(), dir, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
