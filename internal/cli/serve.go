package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /health, /health/detailed and /metrics until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, _, err := setup(ctx)
		if err != nil {
			return err
		}

		if err := app.Start(ctx); err != nil {
			return err
		}
		slog.Info("esguard started", "config", cfgPath)

		<-ctx.Done()
		slog.Info("Received signal, shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := app.Stop(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
			return err
		}
		slog.Info("esguard stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
