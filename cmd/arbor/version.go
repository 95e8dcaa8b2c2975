package main

import (
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Arbor",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Arbor v%s\n", arbor.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
