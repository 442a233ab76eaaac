package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "results <project> <request>",
		Short: "Fetch the completed analyses of a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			response, err := client.results(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, response)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Request %s/%s: %s\n", response.ProjectID, response.RequestID, response.Overall)
			if len(response.Results) == 0 {
				fmt.Fprintln(out, "No completed analyses yet.")
				return nil
			}
			for _, result := range response.Results {
				fmt.Fprintf(out, "\n--- %s ---\n", strings.ToUpper(result.AnalysisType))
				if result.CompletedAt != "" {
					fmt.Fprintf(out, "Completed: %s\n", result.CompletedAt)
				}
				fmt.Fprintln(out, result.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}
