package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show daemon health and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			response, err := client.health(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, response)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon: %s\n", response.Status)

			stageNames := make([]string, 0, len(response.Stages))
			for stage := range response.Stages {
				stageNames = append(stageNames, stage)
			}
			sort.Strings(stageNames)

			rows := make([][]string, 0, len(stageNames))
			for _, stage := range stageNames {
				counts := response.Stages[stage]
				rows = append(rows, []string{
					stage,
					fmt.Sprintf("%d", counts["pending"]+counts["retry"]),
					fmt.Sprintf("%d", counts["processing"]),
					fmt.Sprintf("%d", counts["completed"]),
					fmt.Sprintf("%d", counts["failed"]),
					fmt.Sprintf("%d", counts["cancelled"]),
				})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Stage", "Queued", "Processing", "Completed", "Failed", "Cancelled"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}
