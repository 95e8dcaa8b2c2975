package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a conditional questionnaire engine",
	Long: `Arbor evaluates question groups whose logic tree shows or hides questions
based on earlier answers. Groups are Markdown, YAML or JSON documents in a directory.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the question groups (default: groups_dir from the config)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: arbor.yaml inside --dir)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to stderr")
}

// globalOptions reads the persistent flags. A positional directory argument
// is accepted when --dir is not given.
func globalOptions(cmd *cobra.Command, args []string) cli.Options {
	dir, _ := cmd.Flags().GetString("dir")
	if !cmd.Flags().Changed("dir") && len(args) > 0 {
		dir = args[0]
	}
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{Dir: dir, ConfigPath: configPath, Debug: debug}
}
