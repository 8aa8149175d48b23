package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/spares/internal/config"
	"github.com/JonMunkholm/spares/internal/core"
)

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "List, rename or remove contexts across the catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List context names with item counts and quantities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ *config.Config) error {
				summaries, err := svc.Contexts(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(a.out, summaries)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a context on every item that carries it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ *config.Config) error {
				n, err := svc.RenameContext(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return writeJSON(a.out, map[string]any{"from": args[0], "to": args[1], "itemsUpdated": n})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove NAME",
		Short: "Drop a context from every item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ *config.Config) error {
				n, err := svc.RemoveContext(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(a.out, map[string]any{"context": args[0], "itemsUpdated": n})
			})
		},
	})
	return cmd
}
