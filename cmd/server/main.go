package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vytor/phonicsmastery/internal/api"
	"github.com/vytor/phonicsmastery/internal/config"
	"github.com/vytor/phonicsmastery/internal/curriculum"
	"github.com/vytor/phonicsmastery/internal/db"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/repository/sqlstore"
	"github.com/vytor/phonicsmastery/internal/scheduler"
	"github.com/vytor/phonicsmastery/internal/services"
	"github.com/vytor/phonicsmastery/internal/syncqueue"
	"github.com/vytor/phonicsmastery/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("Phonics Mastery Server Starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_driver=%s", cfg.DBDriver)
	log.Debug("curriculum_path=%q", cfg.CurriculumPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("write_worker_count=%d", cfg.WriteWorkerCount)
	log.Debug("write_queue_size=%d", cfg.WriteQueueSize)
	log.Debug("sync_max_attempts=%d", cfg.SyncMaxAttempts)
	log.Debug("sync_backoff=%v", cfg.SyncBackoff)
	log.Debug("resync_interval=%v", cfg.ResyncInterval)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error: %v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("Phonics Mastery Server Stopped")
	log.Info("===========================================")
}

func run(cfg config.Config, log *logger.Logger) error {
	content, err := curriculum.Load(cfg.CurriculumPath)
	if err != nil {
		return err
	}
	log.Info("curriculum loaded: %d levels, %d activities", len(content.Levels()), len(content.Roster()))

	database, err := db.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		log.Debug("closing database connection")
		if err := database.Close(); err != nil {
			log.Warn("failed to close database: %v", err)
		}
	}()

	progressRepo := sqlstore.NewProgressRepository(database)
	importRepo := sqlstore.NewImportLogRepository(database)

	writePool := worker.NewPool(cfg.WriteWorkerCount, cfg.WriteQueueSize)
	writePool.Start(context.Background())

	queue := syncqueue.New(progressRepo, writePool, syncqueue.Options{
		MaxAttempts: cfg.SyncMaxAttempts,
		Backoff:     cfg.SyncBackoff,
	})
	resync := scheduler.New(queue, cfg.ResyncInterval)
	if err := resync.Start(); err != nil {
		writePool.Stop()
		return err
	}

	mastery := services.NewMasteryService(progressRepo, queue, content, services.MasteryOptions{
		ExpectedActivityCount: cfg.ExpectedActivityCount,
	})
	srv := &api.Server{
		DB:             database,
		MasteryService: mastery,
		ReportService:  services.NewReportService(mastery, content),
		ImportService:  services.NewImportService(progressRepo, importRepo, content),
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Debug("shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error: %v", err)
		}

		log.Debug("stopping resync scheduler")
		resync.Stop()

		log.Debug("draining pending progress writes")
		if err := queue.Drain(shutdownCtx); err != nil {
			log.Warn("shutdown before all writes finished: %v", err)
		}
		if failed := queue.Unsynced(""); len(failed) > 0 {
			log.Error("%d progress writes were never saved", len(failed))
		}

		log.Debug("stopping write pool")
		writePool.Stop()
		return nil
	})
	return g.Wait()
}
