package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/spares/internal/config"
	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/logging"
	"github.com/JonMunkholm/spares/internal/store"
)

// app holds what the commands share. open is swapped out in tests.
type app struct {
	envFile string
	open    func(ctx context.Context, envFile string) (*core.Service, *config.Config, func(), error)
	out     io.Writer
	errOut  io.Writer
}

func newPostgresApp() *app {
	return &app{open: openPostgres, out: os.Stdout, errOut: os.Stderr}
}

// openPostgres loads configuration, connects to the store and builds a
// service. The returned func releases the connection pool.
func openPostgres(ctx context.Context, envFile string) (*core.Service, *config.Config, func(), error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	st, pool, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := core.NewService(st, serviceOptions(cfg, logger))
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return svc, cfg, pool.Close, nil
}

func serviceOptions(cfg *config.Config, logger *slog.Logger) core.Options {
	return core.Options{
		Placeholder:          cfg.Import.Placeholder,
		ChunkSize:            cfg.Store.ChunkSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWaitTime:       cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		Logger:               logger,
	}
}

// dryRunService copies the catalog of svc into a memory store and returns a
// service over the copy. Imports run against it report what they would do
// and leave the real store untouched.
func dryRunService(ctx context.Context, svc *core.Service, cfg *config.Config) (*core.Service, error) {
	items, err := svc.Items(ctx)
	if err != nil {
		return nil, err
	}
	mem := store.NewMemory(cfg.Store.MaxBatchOps)
	if err := mem.Seed(items...); err != nil {
		return nil, fmt.Errorf("copy catalog: %w", err)
	}
	return core.NewService(mem, serviceOptions(cfg, slog.Default()))
}

// withService opens the service for the duration of fn.
func (a *app) withService(ctx context.Context, fn func(*core.Service, *config.Config) error) error {
	svc, cfg, closeFn, err := a.open(ctx, a.envFile)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc, cfg)
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sparesctl",
		Short:         "Spare-parts inventory reconciliation tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional .env file loaded before the environment")
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newContextCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newRestoreCmd(a))
	return cmd
}
