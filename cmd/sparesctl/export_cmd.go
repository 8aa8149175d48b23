package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/spares/internal/config"
	"github.com/JonMunkholm/spares/internal/core"
	"github.com/JonMunkholm/spares/internal/inventory"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog to an XLSX workbook (or JSON for restore)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				ext := "xlsx"
				if asJSON {
					ext = "json"
				}
				output = fmt.Sprintf("catalogo-%s.%s", time.Now().Format("20060102"), ext)
			}

			return a.withService(cmd.Context(), func(svc *core.Service, _ *config.Config) error {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()

				if asJSON {
					items, err := svc.Items(cmd.Context())
					if err != nil {
						return err
					}
					if err := writeJSON(f, items); err != nil {
						return err
					}
				} else if err := svc.ExportCatalog(cmd.Context(), f); err != nil {
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(a.errOut, "catalog written to %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default catalogo-YYYYMMDD.xlsx)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write items as JSON, the input format of restore")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore FILE",
		Short: "Write items from a JSON export back to the store, without history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var items []inventory.Item
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			for i, it := range items {
				if it.ID == "" {
					return fmt.Errorf("read %s: item %d has no id", args[0], i)
				}
			}

			return a.withService(cmd.Context(), func(svc *core.Service, _ *config.Config) error {
				n, err := svc.Restore(cmd.Context(), items)
				if err != nil {
					return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
				}
				return writeJSON(a.out, map[string]any{"itemsWritten": n})
			})
		},
	}
}
