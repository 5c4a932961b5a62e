// Command safeguard-bot watches tracked tokens on Solana and EVM chains and
// posts swap alerts to Telegram.
//
// Usage:
//
//	safeguard-bot migrate
//	safeguard-bot run [--use-memory]
//	safeguard-bot token add --chain solana --address <mint> --channel <chat-id>
//	safeguard-bot blacklist add <chain> <wallet> --reason "mev bot"
//	safeguard-bot alert resend <tx-id>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"safeguard-bot/internal/config"
	"safeguard-bot/internal/logging"
)

// app carries state shared by every subcommand.
type app struct {
	envFile string
	debug   bool
	cfg     *config.Config
	logger  zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "safeguard-bot",
		Short: "Multi-chain swap detection and Telegram alerts",
		Long: `safeguard-bot detects buys and sells of tracked tokens on Solana,
Ethereum, BSC and Base, values them in USD, records each swap once and posts
alerts to the configured Telegram chats.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.LogLevel
			logCfg.FilePath = cfg.LogFile
			logCfg.Console = cfg.LogConsole
			if a.debug {
				logCfg.Level = "debug"
			}
			a.logger = logging.New(logCfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to .env file (ignored if missing)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newTokenCmd(a))
	root.AddCommand(newBlacklistCmd(a))
	root.AddCommand(newAlertCmd(a))

	return root
}
