package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"price_engine/internal/app/di"
	"price_engine/internal/platform/config"
)

// withEngine はエンジンを起動してfnを実行し、最後に必ず閉じます。
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *di.Engine) (any, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel))

	ctx := cmd.Context()
	e, err := di.NewEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(context.Background()); cerr != nil {
			slog.Warn("engine close", "error", cerr)
		}
	}()

	out, err := fn(ctx, e)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitSymbols(args []string) []string {
	var out []string
	for _, a := range args {
		for _, s := range strings.Split(a, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pricectl",
		Short:         "Operate the price caching and history engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetErr(os.Stderr)
	root.AddCommand(
		newSyncCmd(),
		newRefreshCmd(),
		newTrackCmd(),
		newPriceCmd(),
		newHistoryCmd(),
		newRateCmd(),
	)
	return root
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one historical synchronization pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(ctx context.Context, e *di.Engine) (any, error) {
				return e.Sync.Run(ctx)
			})
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh every tracked symbol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(ctx context.Context, e *di.Engine) (any, error) {
				return e.Prices.RefreshTrackedSymbols(ctx)
			})
		},
	}
}

func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track SYMBOL...",
		Short: "Add symbols to the tracked set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, e *di.Engine) (any, error) {
				return e.Prices.TrackSymbols(ctx, splitSymbols(args))
			})
		},
	}
}

func newPriceCmd() *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "price SYMBOL...",
		Short: "Resolve current prices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := splitSymbols(args)
			return withEngine(cmd, func(ctx context.Context, e *di.Engine) (any, error) {
				if len(symbols) == 1 {
					return e.Prices.GetPrice(ctx, symbols[0], fresh)
				}
				return e.Prices.GetBatchPrices(ctx, symbols)
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass the cache and fetch from the provider")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history SYMBOL...",
		Short: "Print stored daily closes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return withEngine(cmd, func(ctx context.Context, e *di.Engine) (any, error) {
				return e.Prices.GetHistoricalPrices(ctx, splitSymbols(args), days)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to look back")
	return cmd
}

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate FROM TO",
		Short: "Resolve an exchange rate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, e *di.Engine) (any, error) {
				rate, err := e.Currency.GetRate(ctx, strings.ToUpper(args[0]), strings.ToUpper(args[1]))
				if err != nil {
					return nil, err
				}
				return map[string]any{"from": strings.ToUpper(args[0]), "to": strings.ToUpper(args[1]), "rate": rate}, nil
			})
		},
	}
}
