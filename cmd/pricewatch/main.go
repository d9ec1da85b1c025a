package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/pricewatch/internal/config"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		slog.Error("pricewatch exited", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "pricewatch",
		Short:         "Price-drop monitor and Telegram post builder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.LedgerBackend, "ledger", cfg.LedgerBackend, "ledger backend: csv|postgres|sqlite|dynamodb")

	root.AddCommand(newMonitorCmd(&cfg))
	root.AddCommand(newBotCmd(&cfg))
	root.AddCommand(newServeCmd(&cfg))
	root.AddCommand(newDigestCmd(&cfg))
	return root
}

func newMonitorCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch product prices and announce drops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.WatchlistFile, "watchlist", cfg.WatchlistFile, "watchlist file (.txt or .yaml)")
	return cmd
}

func newBotCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the operator bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), *cfg)
		},
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API without monitoring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	return cmd
}

func newDigestCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Print today's offers digest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printDigest(cmd.Context(), *cfg, cmd.OutOrStdout())
		},
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
