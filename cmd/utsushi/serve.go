package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd runs the HTTP API.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search API",
		Long: `Serve image search over HTTP. With --watch, new images in the dataset
directory are indexed while the server runs.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().Bool("watch", false, "also watch the dataset directory for new images")
	cmd.Flags().String("host", "", "listen host (default from config)")
	cmd.Flags().Int("port", 0, "listen port (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		e.cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		e.cfg.Server.Port = port
	}

	c, err := initializeComponents(e.cfg, e.logger, initOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		w := newDatasetWatcher(e.cfg, c.Local, e.logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
	}

	srv := server.NewServer(c.Engine, c.Remote, &e.cfg.Server, e.cfg.Remote.MaxResults, e.logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		e.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			e.logger.Warn("Server shutdown failed", zap.Error(err))
			return err
		}
		return nil
	}
}
