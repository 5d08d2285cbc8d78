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

	"github.com/sydlexius/marquee/internal/api"
	"github.com/sydlexius/marquee/internal/config"
	"github.com/sydlexius/marquee/internal/database"
	"github.com/sydlexius/marquee/internal/event"
	"github.com/sydlexius/marquee/internal/history"
	"github.com/sydlexius/marquee/internal/logging"
	"github.com/sydlexius/marquee/internal/playlist"
	"github.com/sydlexius/marquee/internal/run"
	"github.com/sydlexius/marquee/internal/session"
	"github.com/sydlexius/marquee/internal/spotify"
	"github.com/sydlexius/marquee/internal/version"
)

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runApp() error {
	configPath := os.Getenv("MQ_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logLevel, logCloser := logging.New(cfg.Logging)
	if logCloser != nil {
		defer logCloser.Close() //nolint:errcheck
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// Pick up log level changes without a restart.
	go config.Watch(ctx, configPath, logLevel, logger)

	eventBus := event.NewBus(logger, 256)
	go eventBus.Run(ctx)

	spotifyClient := spotify.New(logger)
	authenticator := spotify.NewAuthenticator(
		cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL)

	historyService := history.NewService(db)
	sessionStore := session.NewStore(db)
	runManager := run.NewManager(spotifyClient, historyService, eventBus, logger)
	playlistBuilder := playlist.NewBuilder(spotifyClient, cfg.Spotify.Market, logger)

	// Hourly housekeeping: dead sessions and finished runs.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := sessionStore.Prune(ctx, time.Now()); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("pruned expired sessions", slog.Int64("count", n))
				}
				if n := runManager.Reap(); n > 0 {
					logger.Debug("reaped finished runs", slog.Int("count", n))
				}
			}
		}
	}()

	logger.Info("starting marquee",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	router := api.NewRouter(api.RouterDeps{
		Authenticator:     authenticator,
		Sessions:          sessionStore,
		Runs:              runManager,
		Playlists:         playlistBuilder,
		History:           historyService,
		Bus:               eventBus,
		Logger:            logger,
		BasePath:          cfg.Server.BasePath,
		DefaultTrackCount: cfg.Resolver.DefaultTrackCount,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: the run event stream holds its response open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
