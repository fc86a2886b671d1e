package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"docsum/internal/bot"
	"docsum/internal/config"
	"docsum/internal/database"
	"docsum/internal/extract"
	"docsum/internal/pipeline"
	"docsum/internal/scheduler"
	"docsum/internal/server"
	"docsum/internal/storage"
	"docsum/internal/summarizer"
	"docsum/internal/tokenizer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	level, _ := cfg.SlogLevel()
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	store, err := storage.New(cfg.StorageURL)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize storage",
			"error", err,
			"storageURL", cfg.StorageURL)

		return
	}
	log.InfoContext(ctx, "Storage is initialized",
		"storageURL", store.BaseURL())

	pl, err := initPipeline(ctx, cfg, store, db, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize pipeline",
			"error", err,
			"tokenizerPath", cfg.TokenizerPath,
			"provider", cfg.SummarizerProvider)

		return
	}

	sched := scheduler.New(ctx, store, db, cfg.Retention, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", scheduler.HourlyRetentionSpec,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.HourlyRetentionSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String(),
		"retention", cfg.Retention.String())

	var wg sync.WaitGroup

	srv := server.New(store, db, pl, cfg.MaxUploadBytes, log)
	wg.Go(func() {
		if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
			log.ErrorContext(ctx, "HTTP server is stopped with error",
				"error", err,
				"addr", cfg.HTTPAddr)
			cancel()
		}
	})
	log.InfoContext(ctx, "HTTP server is started",
		"addr", cfg.HTTPAddr,
		"maxUploadBytes", cfg.MaxUploadBytes)

	var botInst *bot.Bot
	if cfg.Token != "" {
		botInst, err = bot.New(bot.Config{
			Token:            cfg.Token,
			AllowedUsers:     cfg.AllowedUsers,
			MaxDownloadBytes: cfg.MaxUploadBytes,
		}, store, db, pl, log)
		if err != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", err,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return
		}
		log.InfoContext(ctx, "Bot is initialized",
			"allowedUsersCount", len(cfg.AllowedUsers))

		wg.Go(func() {
			botInst.Start(ctx)
		})
		log.InfoContext(ctx, "Bot is started")
	} else {
		log.WarnContext(ctx, "TOKEN is missing so bot is disabled",
			"envVar", "TOKEN")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	wg.Wait()

	if botInst != nil {
		botInst.Stop()
		log.InfoContext(ctx, "Bot is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}
}

func initPipeline(
	ctx context.Context,
	cfg config.Config,
	store *storage.Store,
	db *database.Database,
	log *slog.Logger,
) (*pipeline.Pipeline, error) {
	windowSize, err := cfg.WindowSize()
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.NewHuggingFace(cfg.TokenizerPath, cfg.ModelMaxLength)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	log.InfoContext(ctx, "Tokenizer is initialized",
		"tokenizerPath", cfg.TokenizerPath,
		"modelMaxLength", cfg.ModelMaxLength,
		"windowSize", windowSize)

	s, err := summarizer.New(cfg.Summarizer())
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}
	log.InfoContext(ctx, "Summarizer is initialized",
		"provider", cfg.SummarizerProvider)

	return pipeline.New(
		store,
		extract.New(log),
		tok,
		s,
		pipeline.Config{
			WindowSize:       windowSize,
			MinLength:        cfg.SummaryMinLength,
			MaxLength:        cfg.SummaryMaxLength,
			SummarizeTimeout: cfg.SummarizeTimeout,
		},
		log,
		pipeline.WithObserver(database.NewRecorder(db, log)),
	)
}
