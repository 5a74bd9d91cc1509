package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"futures-sim-bot/internal/app"
	"futures-sim-bot/internal/config"
	"futures-sim-bot/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	envFile    string
	mode       string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "simbot",
		Short:         "Mock futures trading simulator with a persistent portfolio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to yaml config (optional)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to .env file with live-mode credentials")
	cmd.PersistentFlags().StringVar(&opts.mode, "mode", "", "override mode: mock or live")

	cmd.AddCommand(
		newPricesCmd(opts),
		newBalanceCmd(opts),
		newBuyCmd(opts),
		newSellCmd(opts),
		newCalcCmd(opts),
		newPortfolioCmd(opts),
		newHistoryCmd(opts),
		newSetPriceCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, builds the app, and hands a signal-aware
// context to the command body. Every subcommand funnels through here.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app.App, log *zap.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(opts.envFile); err != nil {
			return err
		}
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		if opts.mode != "" {
			cfg.Mode = opts.mode
		}
		log := logging.New(cfg.Log)
		defer func() { _ = log.Sync() }()

		a, err := app.New(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx, a, log)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDecimalFlag(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return d, nil
}
