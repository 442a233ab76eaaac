package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status <project> <request>",
		Short: "Show the aggregate status of a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			response, err := client.status(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, response)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Request %s/%s: %s\n", response.ProjectID, response.RequestID, colorizeOverall(response.Overall, colorize))
			if response.ErrorMessage != "" {
				fmt.Fprintf(out, "Last error: %s\n", response.ErrorMessage)
			}

			rows := make([][]string, 0, len(response.Stages))
			for _, stage := range response.Stages {
				status := stage.Status
				if status == "" {
					status = "-"
				}
				rows = append(rows, []string{
					stage.Stage,
					status,
					fmt.Sprintf("%d", stage.Items),
					stage.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Status", "Items", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}
