package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"newsreader/internal/ai"
	"newsreader/internal/bot"
	"newsreader/internal/cache"
	"newsreader/internal/config"
	"newsreader/internal/ingest"
	"newsreader/internal/publisher"
	"newsreader/internal/scraper"
	"newsreader/internal/server"
	"newsreader/internal/storage"
)

const (
	badgerGCInterval = 10 * time.Minute
	shutdownTimeout  = 15 * time.Second
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(cfg.Level())

	log.WithFields(logrus.Fields{
		"data_dir":     cfg.DataDir,
		"chat_backend": cfg.ChatBackend,
		"port":         cfg.Port,
	}).Info("Configuration loaded successfully")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	articles := storage.NewArticleStore(cfg.ArticlesFile, log)
	if err := articles.EnsureIDs(ctx); err != nil {
		log.WithError(err).Warn("Failed to rewrite article ids")
	}

	history, err := openChatStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize chat history: %v", err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			log.WithError(err).Error("Error closing chat history")
		}
	}()

	articleCache := cache.New(articles, cfg.CacheDuration, log)

	// --- AI ---
	settings := ai.NewSettingsManager(cfg.SettingsFile, log)
	llm := ai.NewClient(cfg.LLMTimeout, log)
	pretreater := ai.NewPretreater(articles, settings, llm, log)
	chat := ai.NewChatService(articleCache, history, settings, llm, log)

	// --- Side channels ---
	var ingestOpts []ingest.Option
	ingestOpts = append(ingestOpts, ingest.WithPretreater(pretreater))

	if cfg.RabbitMQURL != "" {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQURL,
			Exchange:   cfg.RabbitMQExchange,
			RoutingKey: cfg.RabbitMQRoutingKey,
			QueueName:  cfg.RabbitMQQueue,
		}, log)
		if err != nil {
			log.WithError(err).Error("RabbitMQ unavailable, article events disabled")
		} else {
			defer pub.Close()
			ingestOpts = append(ingestOpts, ingest.WithPublisher(pub))
		}
	}

	if cfg.TelegramBotToken != "" {
		notifier, err := bot.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, articleCache, log)
		if err != nil {
			log.WithError(err).Error("Telegram bot unavailable, notifications disabled")
		} else {
			go notifier.Start(ctx)
			ingestOpts = append(ingestOpts, ingest.WithNotifier(notifier))
		}
	}

	// --- Scraping ---
	if cfg.ScrapeEnabled {
		var fetcher scraper.Fetcher = scraper.NewHTTPFetcher(log)
		if cfg.UseBrowser {
			browser := scraper.NewBrowserFetcher(log)
			defer browser.Close()
			fetcher = browser
		}
		opts := cfg.ScraperOptions()
		sources := []ingest.Source{
			scraper.NewTechCrunch("", fetcher, opts, log),
			scraper.NewFranceInfo("", fetcher, opts, log),
		}
		service := ingest.NewService(articles, sources, articleCache, log, ingestOpts...)
		scheduler := ingest.NewScheduler(service, cfg.ScrapeInterval, cfg.ErrorBackoff, log)
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Scheduler exited")
			}
		}()
	} else {
		log.Info("Scraping disabled")
	}

	// --- HTTP API ---
	api := server.New(server.Deps{
		Cache:      articleCache,
		Editor:     articles,
		History:    history,
		Chat:       chat,
		Settings:   settings,
		Pretreater: pretreater,
	}, server.Config{
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Feed: server.FeedConfig{
			Title:       cfg.FeedTitle,
			Link:        cfg.FeedLink,
			Description: cfg.FeedDescription,
		},
	}, log).WithBackground(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	// --- Wait for Shutdown Signal ---
	<-ctx.Done()
	log.Info("Shutting down newsreader...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("newsreader shut down gracefully.")
}

// openChatStore returns the configured chat history backend.
func openChatStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (storage.ChatStore, error) {
	if cfg.ChatBackend != config.ChatBackendBadger {
		return storage.NewJSONChatStore(cfg.ChatFile, log), nil
	}
	db, err := storage.NewBadgerChatStore(cfg.BadgerPath, log)
	if err != nil {
		return nil, err
	}
	go db.RunGC(ctx, badgerGCInterval)
	return db, nil
}
