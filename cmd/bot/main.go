// Command bot serves the Telegram webhook and processes updates one at a time.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dvloznov/finance-bot/internal/api/handlers"
	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/dvloznov/finance-bot/internal/logger"
)

const queueSize = 100

func main() {
	cfg, err := config.Parse(os.Args[1:],
		kong.Name("bot"),
		kong.Description("Personal finance Telegram bot."),
		kong.UsageOnError(),
	)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log, err := cfg.Logger(os.Stdout)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Invalid logging configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	svc, err := a.Service(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build bot service")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore(inmemory.DefaultRetention)
	jobQueue := inmemory.NewQueue(queueSize, jobStore)

	// The worker context outlives the signal so queued updates still finish.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	handleJob := func(ctx context.Context, job *jobs.UpdateJob) error {
		svc.HandleUpdate(ctx, job.Update)
		return nil
	}
	if err := jobQueue.Start(workerCtx, handleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start update worker")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Webhook: handlers.NewWebhookHandler(jobQueue),
		Health:  handlers.NewHealthHandler(jobQueue),
		Jobs:    handlers.NewJobsHandler(jobStore),
		Secret:  cfg.TelegramWebhookSecret,
		Log:     log,
	})
	if cfg.TelegramWebhookSecret == "" {
		log.Warn().Msg("TELEGRAM_WEBHOOK_SECRET not set - webhook accepts unauthenticated requests")
	}

	port := strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", port).
			Str("ledger_backend", cfg.LedgerBackend).
			Str("pending_backend", cfg.PendingBackend).
			Msg("Starting bot server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain queued updates before exiting
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping update queue")
	}

	log.Info().Msg("Server exited")
}
