package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <group>",
	Short: "Show which questions are visible for a set of answers",
	Long: `Evaluates the flow of a group against answers and prints one page.
Answers are keyed by identifier; bare identifiers belong to the evaluated group.

  arbor evaluate household --answers '{has_pet: "yes"}'
  arbor evaluate household --file answers.yaml --page 2 -f json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		answers, _ := cmd.Flags().GetString("answers")
		page, _ := cmd.Flags().GetInt("page")
		format, _ := cmd.Flags().GetString("format")

		stack, err := cli.Open(cmd.Context(), globalOptions(cmd, nil), cli.LogText)
		if err != nil {
			return err
		}
		defer stack.Close()

		return cli.Evaluate(cmd.Context(), stack.Engine, cmd.OutOrStdout(), cli.EvaluateOptions{
			GroupID:     args[0],
			AnswersFile: file,
			Answers:     answers,
			Page:        page,
			Format:      format,
		})
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("file", "", "YAML or JSON file with answers")
	evaluateCmd.Flags().StringP("answers", "a", "", "Inline YAML or JSON answers, applied over --file")
	evaluateCmd.Flags().IntP("page", "p", 1, "Page to show (clamped to the available pages)")
	evaluateCmd.Flags().StringP("format", "f", cli.FormatText, "Output format (text, json, yaml)")
}
