package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/justbook-waitlist/pkg/config"
	"github.com/diagnosis/justbook-waitlist/pkg/database"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/repository"
	"github.com/spf13/cobra"
)

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatsCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print live signup and survey counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg(), func(ctx context.Context, a *app) error {
				return printJSON(cmd.OutOrStdout(), a.waitlist.LiveStats(ctx))
			})
		},
	}
}

func newExportCmd(cfg func() *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "export registered|opt-outs",
		Short:     "Export registrants or opt-outs as CSV",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"registered", "opt-outs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg(), func(ctx context.Context, a *app) error {
				export := a.waitlist.ExportRegisteredCSV
				if args[0] == "opt-outs" {
					export = a.waitlist.ExportOptOutsCSV
				}

				if output == "" || output == "-" {
					return export(ctx, cmd.OutOrStdout())
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				if err := export(ctx, f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				logger.Info("Export written", "kind", args[0], "file", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newTapCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tap",
		Short: "Record one survey tap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg(), func(ctx context.Context, a *app) error {
				if err := a.waitlist.TrackSurveyTap(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.waitlist.LiveStats(ctx))
			})
		},
	}
}

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if c.Storage.Backend != config.BackendPostgres {
				return fmt.Errorf("migrate needs the postgres backend, got %q", c.Storage.Backend)
			}

			pool, err := database.Connect(cmd.Context(), c.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			if err := repository.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	}
}
