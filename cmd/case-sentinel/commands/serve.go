package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nholik/case-sentinel/internal/api"
	"github.com/nholik/case-sentinel/internal/command"
	"github.com/nholik/case-sentinel/internal/config"
	"github.com/nholik/case-sentinel/internal/coordinator"
	"github.com/nholik/case-sentinel/internal/healthcheck"
	"github.com/nholik/case-sentinel/internal/logging"
	"github.com/nholik/case-sentinel/internal/metrics"
	"github.com/nholik/case-sentinel/internal/notify"
	"github.com/nholik/case-sentinel/internal/server"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/nholik/case-sentinel/internal/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	notifyTimeout = 15 * time.Second
	flushTimeout  = 5 * time.Second
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll every source, serve the read API and answer chat commands.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().Msg("case-sentinel starting")

	if err := config.CheckTemplates(".", cfg.StatePath); err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	store := state.NewStore(state.NewFileStore(cfg.StatePath, logger), logger)
	if err := store.Load(ctx); err != nil {
		return err
	}

	notifier, err := buildNotifier(logger, cfg)
	if err != nil {
		return err
	}

	metricsCollector := metrics.New()
	tracker := healthcheck.NewTracker()

	coord := coordinator.New(logger,
		coordinator.Settings{
			PollInterval:  cfg.PollInterval,
			FetchTimeout:  cfg.FetchTimeout,
			NotifyTimeout: notifyTimeout,
		},
		registry.All(),
		store,
		coordinator.WithNotifier(notifier),
		coordinator.WithMetrics(metricsCollector),
		coordinator.WithTracker(tracker),
	)
	srv := server.New(logger, cfg.HTTPAddr, cfg.PollInterval, api.New(logger, registry, store), tracker, metricsCollector)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.DiscordPost {
		bot, err := command.NewDiscordBot(logger.With().Str("component", "discord").Logger(),
			cfg.DiscordToken, command.NewDispatcher(registry, store))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := store.Close(flushCtx); err != nil {
		logger.Error().Err(err).Msg("final state flush failed")
		runErr = errors.Join(runErr, err)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("case-sentinel stopped")
		return runErr
	}
	logger.Info().Msg("case-sentinel stopped")
	return nil
}

func buildRegistry(cfg config.Config) (*source.Registry, error) {
	overrides, err := cfg.SourceOverrides()
	if err != nil {
		return nil, err
	}
	registry, err := source.NewRegistry(overrides)
	if err != nil {
		return nil, fmt.Errorf("source registry: %w", err)
	}
	return registry, nil
}

// buildNotifier returns nil when notifications are disabled.
func buildNotifier(logger zerolog.Logger, cfg config.Config) (notify.Notifier, error) {
	if !cfg.DiscordPost && !cfg.DryRun {
		logger.Info().Msg("notifications disabled")
		return nil, nil
	}

	notifyLogger := logger.With().Str("component", "notify").Logger()
	notifiers := []notify.Notifier{
		notify.NewDiscordNotifier(notifyLogger, cfg.DiscordWebhookURL),
	}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(notifyLogger, cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(notifyLogger, cfg.WebhookURL, cfg.WebhookTemplate)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}

	var notifier notify.Notifier = notify.NewMultiNotifier(notifiers...)
	if cfg.DryRun {
		notifier = notify.NewDryRunNotifier(notifyLogger, notifier)
	}
	return notifier, nil
}
