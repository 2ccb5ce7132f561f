package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cyanbot/internal/archive"
	"cyanbot/internal/bus"
	"cyanbot/internal/channel"
	"cyanbot/internal/config"
	"cyanbot/internal/convo"
	"cyanbot/internal/metrics"
	"cyanbot/internal/pipeline"
	"cyanbot/internal/provider"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string
)

func main() {
	// Secrets come from the environment; .env is a convenience for local runs.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "cyanbot",
		Short:   "Cyan-kun: a multi-server Discord chat bot",
		Long:    "Cyan-kun watches configured Discord servers, answers keyword-triggered messages through OpenRouter, and keeps a bounded per-channel conversation context.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the configuration document (.json or .yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("refusing to overwrite existing %s", configPath)
			}
			if err := config.Save(configPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", configPath)
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Connect to Discord and start answering messages",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	doc, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(doc.LogLevel)

	discordToken := os.Getenv("DISCORD_TOKEN")
	if discordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	resolver := config.NewResolver(configPath)
	store := convo.NewStore(convo.DefaultMaxHistory)

	completer := provider.NewOpenRouter(provider.OpenRouterConfig{
		APIKey: apiKey,
		Model:  doc.Model,
		Logger: logger,
	})
	if err := completer.Healthy(ctx); err != nil {
		logger.Warn("completion backend unhealthy at startup", "err", err)
	}

	var recorder pipeline.ExchangeRecorder
	if doc.Archive.Enabled {
		arc, err := archive.NewSQLite(doc.Archive.DBPath, logger)
		if err != nil {
			return fmt.Errorf("exchange archive: %w", err)
		}
		defer arc.Close()
		recorder = arc
		logger.Info("exchange archive enabled", "db", doc.Archive.DBPath)
	}

	pipe := pipeline.New(pipeline.Config{
		Resolver:  resolver,
		Store:     store,
		Assembler: convo.NewAssembler(store),
		Completer: completer,
		Bus:       messageBus,
		Recorder:  recorder,
		Logger:    logger,
	})
	go pipe.Run(ctx)

	if doc.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", metrics.Collector.Handler())
		srv := &http.Server{Addr: doc.Metrics.Listen, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", doc.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	discord := channel.NewDiscord(channel.DiscordConfig{
		Token:    discordToken,
		Resolver: resolver,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- discord.Start(ctx, messageBus)
	}()

	logger.Info("gateway started", "config", configPath, "model", doc.Model)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("discord channel: %w", err)
		}
		return nil
	}

	logger.Info("shutting down gateway")
	messageBus.Close()
	return <-errCh
}

func statusCmd() *cobra.Command {
	var (
		channelID string
		last      int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check configuration and backend health",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(configPath)
			if err != nil {
				logger.Info("config", "path", configPath, "loaded", false, "err", err)
				return err
			}
			servers, channels := doc.Stats()
			logger.Info("config", "path", configPath, "loaded", true,
				"servers", servers, "allowed_channels", channels, "model", doc.Model)

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			completer := provider.NewOpenRouter(provider.OpenRouterConfig{
				APIKey: os.Getenv("OPENROUTER_API_KEY"),
				Model:  doc.Model,
				Logger: logger,
			})
			if err := completer.Healthy(ctx); err != nil {
				logger.Info("backend", "healthy", false, "err", err)
			} else {
				logger.Info("backend", "healthy", true, "model", doc.Model)
			}

			if doc.Archive.Enabled {
				arc, err := archive.NewSQLite(doc.Archive.DBPath, logger)
				if err != nil {
					return err
				}
				defer arc.Close()
				n, err := arc.Count(ctx)
				if err != nil {
					return err
				}
				logger.Info("archive", "db", doc.Archive.DBPath, "exchanges", n)

				if channelID != "" {
					exchanges, err := arc.Recent(ctx, channelID, last)
					if err != nil {
						return err
					}
					for _, ex := range exchanges {
						logger.Info("exchange", "channel", ex.ChannelID, "sender", ex.SenderID,
							"model", ex.Model, "latency_ms", ex.LatencyMs, "at", ex.CreatedAt,
							"user", ex.UserText, "reply", ex.ReplyText)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "print recent archived exchanges for this channel id")
	cmd.Flags().IntVar(&last, "last", 10, "how many archived exchanges to print with --channel")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration document path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(configPath)
		},
	})
	return cmd
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
