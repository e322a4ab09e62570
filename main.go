package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"myhomeneeds/config"
	"myhomeneeds/db"
	"myhomeneeds/orders"
	"myhomeneeds/rdx"
)

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "myhomeneeds",
		Short:         "Home-cook marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), tailEventsCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create MongoDB indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := db.Connect(cmd.Context(), cfg.MongoURI)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())
			if err := db.EnsureIndexes(cmd.Context(), client.Database(cfg.MongoDB)); err != nil {
				return err
			}
			logger.Info("indexes ensured", slog.String("database", cfg.MongoDB))
			return nil
		},
	}
}

func tailEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail-events",
		Short: "Print order events published on Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := rdx.Connect(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				return err
			}
			defer conn.Close()
			out := cmd.OutOrStdout()
			return rdx.EventBus{Conn: conn}.Listen(cmd.Context(), orders.EventsChannel, func(payload []byte) {
				fmt.Fprintln(out, string(payload))
			})
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
