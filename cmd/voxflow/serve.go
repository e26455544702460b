package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voxflow-ai/voxflow/internal/config"
	"github.com/voxflow-ai/voxflow/internal/dialogue"
	"github.com/voxflow-ai/voxflow/internal/observability"
	"github.com/voxflow-ai/voxflow/internal/orchestrator"
	"github.com/voxflow-ai/voxflow/internal/session"
	"github.com/voxflow-ai/voxflow/internal/storage"
	"github.com/voxflow-ai/voxflow/internal/stt"
	"github.com/voxflow-ai/voxflow/internal/telephony"
	"github.com/voxflow-ai/voxflow/internal/tts"
	"github.com/voxflow-ai/voxflow/internal/web"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration engine and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	ctx := context.Background()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	carrier, err := newCarrier(cfg)
	if err != nil {
		return err
	}

	pipeline := orchestrator.NewPipeline(orchestrator.PipelineConfig{
		Transcriber: stt.NewOpenAITranscriber(stt.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.WhisperModel,
		}),
		Dialogue: dialogue.NewOpenAIProvider(dialogue.OpenAIConfig{
			APIKey:        cfg.OpenAI.APIKey,
			BaseURL:       cfg.OpenAI.BaseURL,
			ChatModel:     cfg.OpenAI.ChatModel,
			AnalysisModel: cfg.OpenAI.AnalysisModel,
		}),
		Synthesizer: tts.NewOpenAISynthesizer(tts.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.TTSModel,
			Voice:   cfg.OpenAI.Voice,
			Speed:   cfg.OpenAI.Speed,
		}),
		Logger:  logger,
		Metrics: metrics,
		Voice:   cfg.OpenAI.Voice,
		Speed:   cfg.OpenAI.Speed,
	})

	registry := session.NewRegistry()
	engine := orchestrator.New(orchestrator.Config{
		Registry:      registry,
		Locks:         session.NewLockManager(cfg.Session.LockTimeout),
		Pipeline:      pipeline,
		Store:         store,
		Carrier:       carrier,
		Logger:        logger,
		Metrics:       metrics,
		PublicURL:     cfg.Server.PublicURL,
		MaxErrors:     cfg.Session.MaxErrors,
		HistoryWindow: cfg.Session.HistoryWindow,
	})

	sweeper := session.NewSweeper(session.SweeperConfig{
		Registry:   registry,
		Terminator: engine,
		Logger:     logger,
		Metrics:    metrics,
		Interval:   cfg.Session.SweepInterval,
		IdleAfter:  cfg.Session.IdleTimeout,
	})
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	server := web.NewServer(web.Config{
		Addr:               fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Engine:             engine,
		Carrier:            carrier,
		PublicURL:          cfg.Server.PublicURL,
		ValidateSignatures: cfg.Telephony.ValidateSignatures,
		Logger:             logger,
		Metrics:            metrics,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info(ctx, "voxflow started",
		"version", version,
		"provider", cfg.Telephony.Provider,
		"public_url", cfg.Server.PublicURL,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info(ctx, "shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Path == "" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewSQLiteStore(cfg.Database.Path)
}

func newCarrier(cfg *config.Config) (telephony.Provider, error) {
	switch cfg.Telephony.Provider {
	case "twilio":
		return telephony.NewTwilioProvider(telephony.TwilioConfig{
			AccountSID: cfg.Telephony.AccountSID,
			AuthToken:  cfg.Telephony.AuthToken,
			FromNumber: cfg.Telephony.FromNumber,
		})
	case "mock":
		return telephony.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown telephony provider %q", cfg.Telephony.Provider)
	}
}
