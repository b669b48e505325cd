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

	"github.com/lysyi3m/board-cache/app/api"
	"github.com/lysyi3m/board-cache/app/attachments"
	"github.com/lysyi3m/board-cache/app/cfg"
	"github.com/lysyi3m/board-cache/app/content"
	"github.com/lysyi3m/board-cache/app/database"
	"github.com/lysyi3m/board-cache/app/display"
	"github.com/lysyi3m/board-cache/app/feed"
	"github.com/lysyi3m/board-cache/app/push"
	"github.com/lysyi3m/board-cache/app/remote"
	"github.com/lysyi3m/board-cache/app/retention"
	"github.com/lysyi3m/board-cache/app/syncer"
	"github.com/lysyi3m/board-cache/app/tasks"
)

const shutdownTimeout = 10 * time.Second

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("board-cache stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting board-cache", "version", appCfg.Version, "board_id", appCfg.BoardID, "server_url", appCfg.ServerURL)

	profile, err := cfg.LoadProfile(appCfg.ProfileFile)
	if err != nil {
		return err
	}

	db, err := database.NewConnection(appCfg.StorageDir)
	if err != nil {
		return fmt.Errorf("failed to open content database: %w", err)
	}
	defer db.Close()
	slog.Info("Content database ready", "path", db.Path())

	store := database.NewContentStore(db)

	storage, err := attachments.NewStorage(appCfg.StorageDir, appCfg.MaxStorageSize)
	if err != nil {
		return fmt.Errorf("failed to prepare attachment storage: %w", err)
	}

	httpClient := &http.Client{}

	remoteClient, err := remote.NewClient(appCfg.ServerURL, appCfg.BoardID, appCfg.APIKey, appCfg.UserAgent, httpClient)
	if err != nil {
		return err
	}

	fetcher, err := attachments.NewFetcher(store, storage, httpClient, appCfg.ServerURL, appCfg.UserAgent)
	if err != nil {
		return err
	}

	normalizer := content.NewNormalizer(profile.PriorityTable(), profile.DefaultDisplayDuration)
	coordinator := syncer.NewCoordinator(remoteClient, store, fetcher, normalizer)

	if appCfg.FeedURL != "" {
		feedCfg := profile.Feed
		feedCfg.URL = appCfg.FeedURL
		source, err := feed.NewSource(feedCfg, appCfg.UserAgent, httpClient)
		if err != nil {
			return err
		}
		coordinator.SetFeed(source)
		slog.Info("Ticker feed enabled", "url", source.URL())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	selector := display.NewSelector(store, display.LogRenderer{})
	if err := selector.Refresh(ctx, time.Now()); err != nil {
		slog.Warn("Failed to load cached content", "error", err)
	}
	coordinator.OnSynced(func(ctx context.Context, _ syncer.Result) {
		if err := selector.Refresh(ctx, time.Now()); err != nil {
			slog.Warn("Failed to refresh active content", "error", err)
		}
	})

	manager := retention.NewManager(store, storage, retention.Config{
		MaxAge:       appCfg.RetentionMaxAge(),
		EnforceQuota: appCfg.EnforceQuota,
	})

	scheduler := tasks.NewScheduler(tasks.Config{
		SyncInterval:    appCfg.SyncInterval,
		CleanupInterval: appCfg.CleanupInterval,
		StatusInterval:  appCfg.StatusInterval,
	}, coordinator, manager, remoteClient)
	scheduler.Start()
	defer scheduler.Stop()

	go selector.Run(ctx, display.TickInterval)

	if appCfg.MQTTBroker != "" {
		subscriber, err := push.NewSubscriber(push.Config{
			Broker:   appCfg.MQTTBroker,
			Topic:    appCfg.MQTTTopic,
			Username: appCfg.MQTTUsername,
			Password: appCfg.MQTTPassword,
			BoardID:  appCfg.BoardID,
		}, scheduler)
		if err != nil {
			return err
		}
		subscriber.Start()
		defer subscriber.Stop()
	} else {
		slog.Info("Push channel disabled (MQTT_BROKER not set)")
	}

	serverErrChan := make(chan error, 1)
	var httpServer *http.Server
	if appCfg.StatusAddr != "" {
		handler := api.NewHandler(appCfg.BoardID, store, manager, selector, coordinator, scheduler)
		httpServer = &http.Server{
			Addr:         appCfg.StatusAddr,
			Handler:      api.NewServer(handler, appCfg.StatusAPIKey),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			slog.Info("Status API listening", "addr", appCfg.StatusAddr, "sync_auth", appCfg.StatusAPIKey != "")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	slog.Info("board-cache started")

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Status API failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown error", "error", err)
		}
	}

	scheduler.Stop()

	statusCtx, statusCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer statusCancel()
	if err := remoteClient.UpdateStatus(statusCtx, remote.StatusOffline, time.Now()); err != nil {
		slog.Warn("Failed to report offline status", "error", err)
	}

	slog.Info("board-cache shutdown complete")
	return nil
}
