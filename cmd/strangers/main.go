package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"strangers/internal/app"
	"strangers/internal/config"
	"strangers/internal/logging"
)

type options struct {
	configPath    string
	port          int
	host          string
	allowedOrigin string
	logLevel      string
	databasePath  string
	noMatchLog    bool
}

func main() {
	cmd, _ := newRootCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "strangers",
		Short: "Anonymous stranger matching and WebRTC signaling server",
		Long: `strangers pairs anonymous visitors one-to-one in arrival order and relays
WebRTC signaling, chat text and camera status between the two partners over
WebSocket. Media flows peer to peer; the server never sees it.

Configuration is read from defaults, then environment variables, then the
config file (JSON or YAML). Flags override everything.

Examples:
  strangers
  strangers --port 8080 --allowed-origin https://chat.example.com
  strangers --config strangers.yaml --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logging.Init(cfg.Logging.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv("STRANGERS_CONFIG_FILE"), "path to a JSON or YAML config file")
	flags.IntVarP(&opts.port, "port", "p", 0, "HTTP port (default 5000, or $PORT)")
	flags.StringVar(&opts.host, "host", "", "HTTP listen host")
	flags.StringVar(&opts.allowedOrigin, "allowed-origin", "", "origin allowed to open WebSocket connections, * for any")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.databasePath, "database", "", "match log SQLite path (default in-memory)")
	flags.BoolVar(&opts.noMatchLog, "no-match-log", false, "disable the match log")

	return cmd, opts
}

// loadConfig resolves file > env > defaults, then applies explicitly set flags
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfigWithPrecedence(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.HTTP.Port = opts.port
	}
	if flags.Changed("host") {
		cfg.HTTP.Host = opts.host
	}
	if flags.Changed("allowed-origin") {
		cfg.HTTP.AllowedOrigin = opts.allowedOrigin
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("database") {
		cfg.Database.Path = opts.databasePath
	}
	if opts.noMatchLog {
		cfg.Database.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run serves until ctx is cancelled, then shuts down within 30 seconds
func run(ctx context.Context, cfg *config.Config) error {
	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// The hub must outlive the signal so shutdown can end open matches
	if err := application.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
