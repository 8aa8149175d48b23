package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/spares/internal/config"
	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/sheet"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Reconcile a CSV or XLSX file into the catalog",
	}
	cmd.AddCommand(newImportContextCmd(a))
	cmd.AddCommand(newImportCatalogCmd(a))
	return cmd
}

func newImportContextCmd(a *app) *cobra.Command {
	var (
		name        string
		kind        string
		placeholder string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "context FILE",
		Short: "Record the file's quantities under a named request or stock context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := inventory.ParseKind(kind)
			if err != nil {
				return fmt.Errorf("invalid --kind: %w", err)
			}
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("invalid --name: %w", core.ErrInvalidContextName)
			}

			return a.withService(cmd.Context(), func(svc *core.Service, cfg *config.Config) error {
				parsed, err := parseFile(args[0], cfg.Import.MaxFileSize)
				if err != nil {
					return a.report(nil, err)
				}
				if svc, err = a.target(cmd.Context(), svc, cfg, dryRun); err != nil {
					return a.report(nil, err)
				}
				res, err := svc.ReconcileContextImport(cmd.Context(), parsed.Rows, core.ContextImport{
					Name:        strings.TrimSpace(name),
					Kind:        k,
					Placeholder: placeholder,
					Source:      filepath.Base(args[0]),
					Progress:    a.progress,
				})
				return a.report(res, err)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Context name, e.g. Req-2026-01 (required)")
	cmd.Flags().StringVar(&kind, "kind", "request", "Context kind: request or stock")
	cmd.Flags().StringVar(&placeholder, "placeholder", "", "Unknown-code marker (default from RECONCILE_PLACEHOLDER)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what the import would change without writing")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newImportCatalogCmd(a *app) *cobra.Command {
	var (
		placeholder string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "catalog FILE",
		Short: "Merge codes, descriptions and unit values without touching quantities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, cfg *config.Config) error {
				parsed, err := parseFile(args[0], cfg.Import.MaxFileSize)
				if err != nil {
					return a.report(nil, err)
				}
				if svc, err = a.target(cmd.Context(), svc, cfg, dryRun); err != nil {
					return a.report(nil, err)
				}
				res, err := svc.ReconcileCatalogImport(cmd.Context(), parsed.Rows, core.CatalogImport{
					Placeholder: placeholder,
					Source:      filepath.Base(args[0]),
					Progress:    a.progress,
				})
				return a.report(res, err)
			})
		},
	}

	cmd.Flags().StringVar(&placeholder, "placeholder", "", "Unknown-code marker (default from RECONCILE_PLACEHOLDER)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what the import would change without writing")
	return cmd
}

// target returns the service an import runs against.
func (a *app) target(ctx context.Context, svc *core.Service, cfg *config.Config, dryRun bool) (*core.Service, error) {
	if !dryRun {
		return svc, nil
	}
	fmt.Fprintln(a.errOut, "dry run: nothing will be written")
	return dryRunService(ctx, svc, cfg)
}

func parseFile(path string, maxSize int64) (*sheet.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	return sheet.Parse(path, f, sheet.Options{MaxSize: maxSize, Size: size})
}

func (a *app) progress(p core.ChunkProgress) {
	fmt.Fprintf(a.errOut, "chunk %d/%d committed (%d rows)\n", p.Chunk, p.Chunks, p.RowsApplied)
}

// report prints the result, if any, and turns a failure into a
// user-facing error. A partial import prints what was saved.
func (a *app) report(res *core.ImportResult, err error) error {
	if res != nil {
		if werr := writeJSON(a.out, res); werr != nil {
			return werr
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
	}
	return nil
}
