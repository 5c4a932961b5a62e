package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAlertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage swap alerts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "resend <tx-id>",
		Short: "Resend the alert of a recorded transaction that was never delivered",
		Long: `Resend dispatches the alert of a recorded transaction whose delivery failed
or was withheld by thresholds or direction policy. Blacklisted wallets stay
suppressed, and transactions already alerted are refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			svc, cleanup, err := a.adminService(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer cleanup()

			outcome, err := svc.ResendAlert(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %d: %s\n", id, outcome)
			return nil
		},
	})
	return cmd
}
