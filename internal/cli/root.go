package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/esguard/internal/control"
	"github.com/vietddude/esguard/internal/core/config"
)

var (
	cfgPath string
	envFile string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "esguard",
	Short: "Resilient Elasticsearch client",
	Long: `esguard talks to Elasticsearch-compatible clusters through a retry engine that
backs off on overload and lost connections, resubmits only rejected bulk
documents and parks documents that fail for good in a dead letter store.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setup loads configuration, installs the logger and builds the application.
func setup(ctx context.Context) (*control.App, *config.AppConfig, error) {
	_ = godotenv.Load(envFile)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, nil, err
	}

	log := newLogger(cfg.Logging, isDebug, os.Stderr)
	slog.SetDefault(log)

	app, err := control.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize esguard: %w", err)
	}
	return app, cfg, nil
}

func newLogger(cfg config.LoggingConfig, debug bool, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case "pretty":
		stylelog.InitDefault(&tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
		return slog.Default()
	default:
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		}))
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
