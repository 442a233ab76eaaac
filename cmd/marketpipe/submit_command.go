package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketpipe/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string
	var requestFlag string
	var descriptionFlag string
	var priorityFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "submit <query>",
		Short: "Submit a research request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			response, err := client.createRequest(cmd.Context(), api.CreateRequestInput{
				ProjectID:   projectFlag,
				RequestID:   requestFlag,
				Query:       args[0],
				Description: descriptionFlag,
				Priority:    priorityFlag,
			})
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, response)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Accepted request %s (stage key %s)\n", response.TenantKey, response.StageKey)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "Project identifier")
	cmd.Flags().StringVarP(&requestFlag, "request", "r", "", "Request identifier")
	cmd.Flags().StringVarP(&descriptionFlag, "description", "d", "", "Optional request description")
	cmd.Flags().StringVar(&priorityFlag, "priority", "", "Priority hint: high, medium, or low")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("request")

	return cmd
}
