package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sekaidex/chapterd/internal/api"
	"github.com/sekaidex/chapterd/internal/config"
	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/download"
	"github.com/sekaidex/chapterd/internal/logger"
	"github.com/sekaidex/chapterd/internal/provider"
	"github.com/sekaidex/chapterd/internal/source"
	"github.com/sekaidex/chapterd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close()

	sources := source.NewManager()
	sources.Register(source.NewMangaDex(
		source.NewClient(nil, constants.DefaultSourceRPS),
		cfg.MangaDexURL,
	))
	for _, ms := range cfg.MadaraSources {
		sources.Register(source.NewMadara(
			source.NewClient(nil, constants.DefaultSourceRPS),
			ms.ID, ms.Name, ms.BaseURL,
		))
		log.Info("registered madara source", "id", ms.ID, "name", ms.Name)
	}

	notifier := download.NewChannelNotifier(256)
	go logEvents(log, notifier)

	// downloads outlive any single request; their lifetime is the process
	ctx, cancelDownloads := context.WithCancel(context.Background())
	defer cancelDownloads()

	manager := download.NewManager(
		ctx,
		db, db, db,
		sources,
		provider.NewResolver(cfg.DownloadsRoot),
		notifier,
		log,
		download.ManagerConfig{
			EngineConfig: download.EngineConfig{
				SaveAsCBZ:   cfg.SaveAsCBZ,
				StopOnError: cfg.StopOnError,
			},
			BlockedScanlators: cfg.BlockedScanlators,
		},
	)

	// pick up whatever a previous run left behind
	restored, err := manager.Restore()
	if err != nil {
		log.Error("failed to restore download queue", "error", err)
		return err
	}
	if restored > 0 {
		log.Info("restored queued downloads", "count", restored)
	}
	if err := manager.ProcessPendingDeletions(); err != nil {
		log.Error("failed to process staged deletions", "error", err)
	}

	handler := api.NewHandler(manager, db, log)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Router(),
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	manager.Stop("server shutting down")
	cancelDownloads()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		return err
	}
	log.Info("server exiting")
	return nil
}

// logEvents surfaces engine events into the structured log.
func logEvents(log *logger.Logger, notifier *download.ChannelNotifier) {
	for event := range notifier.Events() {
		switch event.Kind {
		case download.EventWarning:
			log.Warn("download warning", "message", event.Message, "chapter_id", event.ChapterID)
		case download.EventError:
			log.Error("download error", "message", event.Message, "chapter_id", event.ChapterID)
		case download.EventStatus:
			log.Info("download status",
				"chapter_id", event.ChapterID,
				"status", event.Status.String(),
				"pages_done", event.PagesDone,
				"pages_total", event.PagesAll)
		case download.EventProgress:
			log.Debug("download progress",
				"chapter_id", event.ChapterID,
				"pages_done", event.PagesDone,
				"pages_total", event.PagesAll)
		}
	}
}
