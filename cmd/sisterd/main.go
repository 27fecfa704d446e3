// Package main is the entry point for the foreversister daemon.
//
// One process hosts both halves of the system: the subscription HTTP API
// and the daily scheduler that generates content at dawn and delivers it
// at breakfast time. Graceful shutdown is handled via OS signal
// interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"foreversister/internal/almanac"
	"foreversister/internal/api"
	"foreversister/internal/config"
	"foreversister/internal/content"
	"foreversister/internal/daycache"
	"foreversister/internal/db"
	"foreversister/internal/delivery"
	"foreversister/internal/external"
	"foreversister/internal/scheduler"
	"foreversister/internal/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit
// on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("foreversister starting",
		"port", cfg.Server.Port,
		"generate_at", cfg.Schedule.GenerateAt,
		"deliver_at", cfg.Schedule.DeliverAt,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subscriber store.
	conn, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()
	subscribers := db.NewSubscriberRepository(conn)

	// Day cache and festival dataset.
	cache := daycache.NewStore(cfg.Cache.Dir, logger)
	dataset, err := almanac.LoadDataset(cfg.Cache.FestivalsPath)
	if err != nil {
		return fmt.Errorf("loading festival dataset: %w", err)
	}
	logger.Info("festival dataset loaded", "path", cfg.Cache.FestivalsPath, "entries", dataset.Len())

	// External services.
	chatClient := external.NewChatClient(
		&http.Client{Timeout: cfg.Model.ChatWait},
		external.ChatClientConfig{
			BaseURL: cfg.Model.URL,
			APIKey:  cfg.Model.Key,
			Model:   cfg.Model.Name,
			Logger:  logger,
		},
	)
	imageClient := external.NewImageClient(
		&http.Client{Timeout: cfg.Model.ImageWait},
		external.ImageClientConfig{
			BaseURL: cfg.Model.URL,
			APIKey:  cfg.Model.Key,
			Model:   cfg.Model.ImageName,
			Logger:  logger,
		},
	)

	var calendarClient external.CalendarService
	if cfg.Calendar.URL != "" && cfg.Calendar.Key.Unmask() != "" {
		calendarClient = external.NewCalendarClient(
			&http.Client{Timeout: cfg.Calendar.Timeout},
			external.CalendarClientConfig{
				BaseURL: cfg.Calendar.URL,
				APIKey:  cfg.Calendar.Key,
				Logger:  logger,
			},
		)
	} else {
		logger.Info("remote calendar not configured, using lunar calendar and local dataset only")
	}

	resolver := almanac.NewResolver(calendarClient, dataset, logger)

	// Content generation.
	limiter := content.NewIntervalLimiter(cfg.Model.ImageEvery)
	generator := content.NewGenerator(subscribers, resolver, chatClient, imageClient, limiter, cache, logger)

	// Delivery.
	dialer := delivery.NewDialer(cfg.Mail.Server, cfg.Mail.Port, cfg.Mail.Email, cfg.Mail.Key)
	sender := delivery.NewSender(dialer, cache, delivery.SenderConfig{
		FromEmail: cfg.Mail.Email,
		FromName:  cfg.Mail.FromName,
		Logger:    logger,
	})

	// Scheduler.
	daily, err := scheduler.NewDaily(generator, sender, cfg.Schedule.GenerateAt, cfg.Schedule.DeliverAt, logger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	// Subscription API.
	codes := verify.NewStore()
	handler := api.NewSubscriptionHandler(subscribers, codes, sender, logger)
	srv := api.NewServer(handler, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := daily.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("foreversister stopped")
	return nil
}

// newLogger builds the process-wide structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
