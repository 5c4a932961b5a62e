package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"safeguard-bot/internal/domain"
)

func newBlacklistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage wallets excluded from alerts",
		Long: `Manage wallets excluded from alerts. Use chain "*" to exclude a wallet on
every chain. Tokens added with --mev-filter=false ignore the blacklist.`,
	}
	cmd.AddCommand(newBlacklistAddCmd(a))
	cmd.AddCommand(newBlacklistRemoveCmd(a))
	cmd.AddCommand(newBlacklistCheckCmd(a))
	cmd.AddCommand(newBlacklistListCmd(a))
	return cmd
}

func parseBlacklistChain(s string) (domain.Chain, error) {
	if strings.TrimSpace(s) == string(domain.ChainAny) {
		return domain.ChainAny, nil
	}
	return domain.ParseChain(s)
}

func newBlacklistAddCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "add <chain> <wallet>",
		Short: "Blacklist a wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := parseBlacklistChain(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.AddBlacklist(cmd.Context(), chain, args[1], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blacklisted %s on %s\n", args[1], chain)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the wallet is excluded")
	return cmd
}

func newBlacklistRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <chain> <wallet>",
		Short: "Remove a wallet from the blacklist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := parseBlacklistChain(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.RemoveBlacklist(cmd.Context(), chain, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s on %s\n", args[1], chain)
			return nil
		},
	}
}

func newBlacklistCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <chain> <wallet>",
		Short: "Check whether a wallet is blacklisted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := domain.ParseChain(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			hit, err := svc.IsBlacklisted(cmd.Context(), args[1], chain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hit)
			return nil
		},
	}
}

func newBlacklistListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blacklisted wallets",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := svc.ListBlacklist(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tWALLET\tREASON\tADDED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Chain, e.Wallet, e.Reason, e.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
