package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"safeguard-bot/internal/admin"
	"safeguard-bot/internal/domain"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage tracked tokens",
	}
	cmd.AddCommand(newTokenAddCmd(a))
	cmd.AddCommand(newTokenDeactivateCmd(a))
	cmd.AddCommand(newTokenListCmd(a))
	return cmd
}

func newTokenAddCmd(a *app) *cobra.Command {
	var (
		chain, address, symbol, pool string
		channel                      int64
		minAmount, minUSD, whaleUSD  string
		buttons                      []string
		mediaType, mediaURL          string
		emojiTiers                   string
		mevFilter                    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Start tracking a token",
		Example: `  safeguard-bot token add --chain solana --address EPjF...Dt1v --symbol USDC --channel -1001234567890 --min-usd 50
  safeguard-bot token add --chain base --address 0xToken --pool 0xPair --channel -100123 --whale-usd 5000 \
      --button "Chart=https://dexscreener.com/base/0xPair" --mev-filter=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := domain.ParseChain(chain)
			if err != nil {
				return err
			}
			req := admin.TokenRequest{
				Chain:       c,
				Address:     address,
				Symbol:      symbol,
				PoolAddress: pool,
				ChannelID:   channel,
				MEVFilter:   mevFilter,
			}
			if req.MinAmount, err = parseAmount("min-amount", minAmount); err != nil {
				return err
			}
			if req.MinAmountUSD, err = parseAmount("min-usd", minUSD); err != nil {
				return err
			}
			if req.WhaleThresholdUSD, err = parseAmount("whale-usd", whaleUSD); err != nil {
				return err
			}
			for _, b := range buttons {
				text, url, ok := strings.Cut(b, "=")
				if !ok {
					return fmt.Errorf("button %q must be TEXT=URL", b)
				}
				req.Buttons = append(req.Buttons, domain.Button{Text: text, URL: url})
			}
			if mediaURL != "" {
				req.Media = &domain.Media{Type: domain.MediaType(mediaType), URL: mediaURL}
			}
			if emojiTiers != "" {
				if err := json.Unmarshal([]byte(emojiTiers), &req.EmojiTiers); err != nil {
					return fmt.Errorf("parse --emoji-tiers: %w", err)
				}
			}

			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			token, err := svc.AddTrackedToken(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added token %d (%s %s)\n", token.ID, token.Chain, token.Address)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&chain, "chain", "", "chain: solana, ethereum, bsc, base")
	f.StringVar(&address, "address", "", "token mint or contract address")
	f.StringVar(&symbol, "symbol", "", "token symbol shown in alerts")
	f.StringVar(&pool, "pool", "", "swap pool address (required for EVM chains)")
	f.Int64Var(&channel, "channel", 0, "Telegram chat ID receiving alerts")
	f.StringVar(&minAmount, "min-amount", "0", "minimum token amount to alert")
	f.StringVar(&minUSD, "min-usd", "0", "minimum USD value to alert")
	f.StringVar(&whaleUSD, "whale-usd", "0", "USD value marking a whale buy")
	f.StringArrayVar(&buttons, "button", nil, "URL button as TEXT=URL (repeatable, max 3)")
	f.StringVar(&mediaType, "media-type", string(domain.MediaPhoto), "media type: photo, video, animation")
	f.StringVar(&mediaURL, "media-url", "", "media URL or Telegram file ID")
	f.StringVar(&emojiTiers, "emoji-tiers", "", `emoji tiers as JSON, e.g. [{"min_usd":"0","max_usd":"1000","emoji":"🟢"}]`)
	f.BoolVar(&mevFilter, "mev-filter", true, "suppress alerts from blacklisted wallets (--mev-filter=false to opt out)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func newTokenDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <token-id>",
		Short: "Stop tracking a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token id %q", args[0])
			}
			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.DeactivateTrackedToken(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated token %d\n", id)
			return nil
		},
	}
}

func newTokenListCmd(a *app) *cobra.Command {
	var chain string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			var c domain.Chain
			if chain != "" {
				parsed, err := domain.ParseChain(chain)
				if err != nil {
					return err
				}
				c = parsed
			}
			svc, cleanup, err := a.adminService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			tokens, err := svc.ListActiveTokens(cmd.Context(), c)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHAIN\tSYMBOL\tADDRESS\tCHANNEL\tMIN\tMIN USD\tWHALE USD")
			for _, t := range tokens {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					t.ID, t.Chain, t.Symbol, t.Address, t.ChannelID,
					t.MinAmount.String(), t.MinAmountUSD.String(), t.WhaleThresholdUSD.String())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "only list tokens on this chain")
	return cmd
}

func parseAmount(flag, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q", flag, s)
	}
	return d, nil
}
