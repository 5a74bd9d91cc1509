package cli

import (
	"context"
	"errors"

	"futures-sim-bot/internal/app"
	"futures-sim-bot/internal/sizing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPricesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Print the current price catalog",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			tickers, err := a.Prices(ctx)
			if err != nil {
				return err
			}
			return printJSON(tickers)
		}),
	}
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the simulated account balance",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			if live {
				bal, err := a.LiveAccountBalance(ctx)
				if err != nil {
					return err
				}
				return printJSON(bal)
			}
			bal, err := a.Balance(ctx)
			if err != nil {
				return err
			}
			return printJSON(bal)
		}),
	}
	cmd.Flags().BoolVar(&live, "live", false, "query the live provider's account instead of the simulation")
	return cmd
}

func newTradeCmd(opts *rootOptions, use, short string, run func(ctx context.Context, a *app.App, symbol, quantity string) error) *cobra.Command {
	var symbol, quantity string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			if symbol == "" || quantity == "" {
				return errors.New("--symbol and --quantity are required")
			}
			return run(ctx, a, symbol, quantity)
		}),
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	cmd.Flags().StringVar(&quantity, "quantity", "", "base asset quantity, e.g. 0.01")
	return cmd
}

func newBuyCmd(opts *rootOptions) *cobra.Command {
	return newTradeCmd(opts, "buy", "Simulate a market buy", func(ctx context.Context, a *app.App, symbol, quantity string) error {
		qty, err := parseDecimalFlag("quantity", quantity)
		if err != nil {
			return err
		}
		trade, err := a.Buy(ctx, symbol, qty)
		if err != nil {
			return err
		}
		return printJSON(trade)
	})
}

func newSellCmd(opts *rootOptions) *cobra.Command {
	return newTradeCmd(opts, "sell", "Simulate a market sell", func(ctx context.Context, a *app.App, symbol, quantity string) error {
		qty, err := parseDecimalFlag("quantity", quantity)
		if err != nil {
			return err
		}
		trade, err := a.Sell(ctx, symbol, qty)
		if err != nil {
			return err
		}
		return printJSON(trade)
	})
}

func newCalcCmd(opts *rootOptions) *cobra.Command {
	var symbol, equity, risk, stop, leverage string
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute a position size from risk parameters",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			if symbol == "" || risk == "" || stop == "" {
				return errors.New("--symbol, --risk and --stop are required")
			}
			params := sizing.RiskParameters{}
			var err error
			if equity != "" {
				if params.AccountEquity, err = parseDecimalFlag("equity", equity); err != nil {
					return err
				}
			}
			if params.RiskFraction, err = parseDecimalFlag("risk", risk); err != nil {
				return err
			}
			if params.StopDistanceFraction, err = parseDecimalFlag("stop", stop); err != nil {
				return err
			}
			if leverage != "" {
				if params.Leverage, err = parseDecimalFlag("leverage", leverage); err != nil {
					return err
				}
			}
			result, err := a.CalcSize(ctx, symbol, params)
			if err != nil {
				return err
			}
			return printJSON(result)
		}),
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	cmd.Flags().StringVar(&equity, "equity", "", "account equity (defaults to quote balance)")
	cmd.Flags().StringVar(&risk, "risk", "", "risk fraction per trade, e.g. 0.01")
	cmd.Flags().StringVar(&stop, "stop", "", "stop distance fraction, e.g. 0.05")
	cmd.Flags().StringVar(&leverage, "leverage", "", "leverage multiplier (default 1)")
	return cmd
}

func newPortfolioCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Print the valuation summary",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			summary, err := a.Summarize(ctx)
			if err != nil {
				return err
			}
			return printJSON(summary)
		}),
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the trade history",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			trades, err := a.History(ctx)
			if err != nil {
				return err
			}
			return printJSON(trades)
		}),
	}
}

func newSetPriceCmd(opts *rootOptions) *cobra.Command {
	var symbol, price string
	cmd := &cobra.Command{
		Use:   "set-price",
		Short: "Override a mock catalog price",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			if symbol == "" || price == "" {
				return errors.New("--symbol and --price are required")
			}
			p, err := parseDecimalFlag("price", price)
			if err != nil {
				return err
			}
			return a.SetMockPrice(ctx, symbol, p)
		}),
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	cmd.Flags().StringVar(&price, "price", "", "new catalog price")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and metrics endpoint",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, log *zap.Logger) error {
			err := a.Serve(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
}
