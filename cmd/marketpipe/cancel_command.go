package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <project> <request>",
		Short: "Cancel an in-flight request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.cancel(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled request %s/%s\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}
