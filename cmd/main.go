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

	"golang.org/x/sync/errgroup"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	"github.com/soundloom/companion-bot/internal/clients/musicapi"
	"github.com/soundloom/companion-bot/internal/db"
	"github.com/soundloom/companion-bot/internal/deeplink"
	"github.com/soundloom/companion-bot/internal/handlers"
	"github.com/soundloom/companion-bot/internal/navigation"
	"github.com/soundloom/companion-bot/internal/observability"
	"github.com/soundloom/companion-bot/internal/pkg/envutil"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/realtime"
	"github.com/soundloom/companion-bot/internal/repos"
	"github.com/soundloom/companion-bot/internal/server"
	"github.com/soundloom/companion-bot/internal/services"
	"github.com/soundloom/companion-bot/internal/session"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "companion-bot",
		Environment: envutil.String("DEPLOY_ENV", "development"),
	})
	if shutdownOtel != nil {
		defer func() { _ = shutdownOtel(context.Background()) }()
	}

	// Postgres holds the only state that must survive restarts.
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	menuStateRepo := repos.NewMenuStateRepo(thePG, log)
	trackedMessageRepo := repos.NewTrackedMessageRepo(thePG, log)
	deepLinkEventRepo := repos.NewDeepLinkEventRepo(thePG, log)

	// Clients
	log.Info("Setting up clients...")
	botClient, err := botapi.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init bot API client", "error", err)
		os.Exit(1)
	}
	musicClient, err := musicapi.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init music backend client", "error", err)
		os.Exit(1)
	}

	// Session engine
	log.Info("Setting up session engine...")
	tuning := session.LoadTuning(log)
	navStore := navigation.New(tuning.NavigationConfig(), navigation.NewMemoryStore(), log)
	tracker := session.NewTracker(log, trackedMessageRepo, botClient)
	menuService := session.NewMenuService(log, botClient, menuStateRepo, tracker)
	analyticsService := services.NewAnalyticsService(log, deepLinkEventRepo)
	dispatcher := deeplink.NewDispatcher(
		log,
		musicClient,
		menuService,
		navStore,
		analyticsService,
		envutil.String("APP_BASE_URL", "https://app.soundloom.io"),
	)

	// Change feed: redis push with polling fallback. The manager is
	// constructed either way; a missing redis only costs push latency, the
	// poller needs nothing but the music client and still converges.
	var bus realtime.Bus
	if b, err := realtime.NewRedisBus(log); err != nil {
		log.Warn("Redis job bus unavailable, change feed will poll only", "error", err)
	} else {
		bus = b
		defer func() { _ = bus.Close() }()
	}
	feedCfg := realtime.SupervisorConfig{
		BaseDelay:    millis(tuning.Feed.BaseDelayMS),
		MaxDelay:     millis(tuning.Feed.MaxDelayMS),
		MaxAttempts:  tuning.Feed.MaxAttempts,
		PollInterval: millis(tuning.Feed.PollIntervalMS),
	}
	var sessionService *session.Service
	onEvent := func(ev realtime.JobEvent) {
		if sessionService != nil {
			sessionService.HandleJobEvent(ctx, ev)
		}
	}
	poll := func(ctx context.Context, userID int64) error {
		jobs, err := musicClient.ListActiveJobs(ctx, userID)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			onEvent(realtime.JobEvent{
				UserID:   job.UserID,
				JobID:    job.ID,
				Status:   job.Status,
				Progress: job.Progress,
				TrackID:  job.TrackID,
			})
		}
		return nil
	}
	feedManager := realtime.NewManager(ctx, log, bus, feedCfg, onEvent, poll)
	defer feedManager.StopAll()

	sessionService = session.NewService(log, navStore, menuService, tracker, musicClient, botClient, dispatcher, feedManager)

	// HTTP
	webhookHandler := handlers.NewWebhookHandler(log, sessionService, os.Getenv("WEBHOOK_SECRET"))
	router := server.NewRouter(server.RouterConfig{
		ServiceName:    "companion-bot",
		WebhookHandler: webhookHandler,
	})

	addr := ":" + envutil.String("PORT", "8080")
	httpServer := &http.Server{Addr: addr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := tracker.RunSweeper(gctx, tuning.SweepInterval())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
