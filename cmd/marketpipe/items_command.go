package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var stageFlag string
	var statusFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "items <project> <request>",
		Short: "List the work items of a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			response, err := client.items(cmd.Context(), args[0], args[1], stageFlag, statusFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, response)
			}

			out := cmd.OutOrStdout()
			if len(response.Items) == 0 {
				fmt.Fprintln(out, "No items found.")
				return nil
			}
			rows := make([][]string, 0, len(response.Items))
			for _, item := range response.Items {
				rows = append(rows, []string{
					item.Stage,
					item.StageKey,
					item.Status,
					fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries),
					item.UpdatedAt.UTC().Format(time.RFC3339),
					item.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Stage Key", "Status", "Retries", "Updated", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFlag, "stage", "", "Filter by stage")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}
