package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/config"
	"github.com/hyperjump/utsushi/internal/pipeline"
	"github.com/hyperjump/utsushi/internal/watcher"
)

// NewWatchCmd keeps the index in sync with new images in the dataset.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Index new images as they appear in the dataset directory",
		Long: `Watch the dataset root recursively and append images that are created or
rewritten to the index. Removed images stay in the index until the next build.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	c, err := initializeComponents(e.cfg, e.logger, initOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	w := newDatasetWatcher(e.cfg, c.Local, e.logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", w.Root())
	<-ctx.Done()
	return nil
}

// newDatasetWatcher wires watcher batches into incremental local indexing.
func newDatasetWatcher(cfg *config.Config, local *pipeline.LocalBuilder, logger *zap.Logger) *watcher.Watcher {
	root := cfg.Dataset.Root
	onBatch := func(ctx context.Context, paths []string) {
		report, err := local.IndexFiles(ctx, root, paths)
		if err != nil {
			logger.Warn("Failed to index new images", zap.Int("files", len(paths)), zap.Error(err))
			return
		}
		logger.Info("Indexed new images",
			zap.Int("indexed", report.Indexed),
			zap.Int("failed", report.Failed),
			zap.Int("index_size", report.IndexSize),
		)
	}
	return watcher.New(root, cfg.Dataset.Extensions, onBatch,
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce),
	)
}
