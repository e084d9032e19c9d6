// locker-server serves the Document Locker file API for local development
// and small deployments. Files live on disk, in S3 or in Azure Blob Storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/server"
	"github.com/document-locker/locker/internal/storage"
	"github.com/document-locker/locker/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		addr        string
		backend     string
		dataDir     string
		requireAuth bool
		debug       bool
	)

	cmd := &cobra.Command{
		Use:     "locker-server",
		Short:   "Document Locker API server",
		Version: version.Version + " (" + version.BuildTime + ")",
		Long: `Serve the Document Locker file API.

Settings come from the --config INI file, then LOCKER_* environment
variables, then flags.

Examples:
  locker-server --backend local --dir ./data
  locker-server --config /etc/locker/server.ini
  LOCKER_S3_BUCKET=my-bucket locker-server --backend s3`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backend
			}
			if cmd.Flags().Changed("dir") {
				cfg.LocalDir = dataDir
			}
			if cmd.Flags().Changed("require-auth") {
				cfg.RequireAuth = requireAuth
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid server configuration: %w", err)
			}

			if debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			logger := logging.NewLogger(logging.Options{Mode: logging.ModeServer, File: cfg.LogFile})
			defer logger.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, err := storage.New(ctx, cfg, logger)
			if err != nil {
				logger.Error().Err(err).Str("backend", cfg.Backend).Msg("Failed to initialize storage")
				return err
			}
			if backend == nil {
				logger.Warn().Msg("No storage backend configured; file routes will answer 503")
			}

			srv, err := server.New(server.Options{Config: cfg, Backend: backend, Logger: logger})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Server config file (INI)")
	cmd.Flags().StringVar(&addr, "addr", ":5000", "Listen address")
	cmd.Flags().StringVar(&backend, "backend", config.BackendLocal, "Storage backend: local, s3 or azure")
	cmd.Flags().StringVar(&dataDir, "dir", "./data", "Directory for the local backend")
	cmd.Flags().BoolVar(&requireAuth, "require-auth", false, "Require a bearer token on file routes")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}
