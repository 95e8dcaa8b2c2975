package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Start the HTTP server",
	Long: `Exposes groups, evaluation and respondent sessions as a JSON API over HTTP.
Requests are validated against the embedded OpenAPI document. When
metrics.enabled is set, Prometheus metrics are served on /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return cli.Serve(cli.ServeOptions{Options: globalOptions(cmd, args), Port: port})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: http.port from the config)")
}
