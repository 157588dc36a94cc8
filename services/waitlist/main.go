package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/diagnosis/justbook-waitlist/pkg/config"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("Waitlist service error", "error", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The bare command runs the HTTP server.
func newRootCmd() *cobra.Command {
	var (
		cfg     *config.Config
		backend string
		dataDir string
	)

	root := &cobra.Command{
		Use:           "waitlist",
		Short:         "JustBook waitlist service and admin tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			// Admin commands print results on stdout, so logs move to stderr.
			if cmd.HasParent() {
				logger.SetDefault(logger.New(cmd.ErrOrStderr(), os.Getenv("LOG_LEVEL")))
			}

			cfg = config.Load()
			if cmd.Flags().Changed("backend") {
				cfg.Storage.Backend = backend
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.Storage.DataDir = dataDir
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: json, csv or postgres (overrides STORAGE_BACKEND)")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for file storage (overrides DATA_DIR)")

	getConfig := func() *config.Config { return cfg }
	root.AddCommand(
		newStatsCmd(getConfig),
		newExportCmd(getConfig),
		newTapCmd(getConfig),
		newMigrateCmd(getConfig),
	)
	return root
}
