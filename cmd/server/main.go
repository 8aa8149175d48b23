package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/spares/internal/config"
	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/store"
	"github.com/JonMunkholm/spares/internal/web"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"chunk_size", cfg.Store.ChunkSize,
		"max_batch_ops", cfg.Store.MaxBatchOps,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, pool, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	service, err := core.NewService(st, core.Options{
		Placeholder:          cfg.Import.Placeholder,
		ChunkSize:            cfg.Store.ChunkSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWaitTime:       cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		Logger:               logger,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	// Live subscription keeps the item snapshot current.
	g.Go(func() error {
		err := service.Run(gctx)
		if errors.Is(gctx.Err(), context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		service.RunHistoryPruner(gctx, core.RetentionConfig{
			Days:          cfg.History.RetentionDays,
			CheckInterval: cfg.History.PruneInterval,
		})
		return nil
	})

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
