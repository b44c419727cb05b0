package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/utsushi/internal/config"
	"github.com/hyperjump/utsushi/internal/storage"
	"github.com/hyperjump/utsushi/internal/vector"
)

// NewSnapshotCmd copies the persisted index to and from a snapshot store.
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Publish or restore index snapshots",
		Long: `Copy the index file and its metadata file to the configured snapshot store
(a local directory or an S3 bucket), or restore them from it.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "push",
			Short: "Publish the persisted index to the snapshot store",
			Args:  cobra.NoArgs,
			RunE:  runSnapshotPush,
		},
		&cobra.Command{
			Use:   "pull",
			Short: "Restore the persisted index from the snapshot store",
			Args:  cobra.NoArgs,
			RunE:  runSnapshotPull,
		},
	)
	return cmd
}

func runSnapshotPush(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	store, err := newSnapshotStore(cmd.Context(), &e.cfg.Storage.Snapshot)
	if err != nil {
		return err
	}
	indexPath, metaPath := indexPaths(e.cfg)
	m, err := storage.PublishSnapshot(cmd.Context(), store, indexPath, metaPath)
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published snapshot (%d + %d bytes) at %s\n",
		m.IndexBytes, m.MetadataBytes, m.PublishedAt.Format(time.RFC3339))
	return nil
}

func runSnapshotPull(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	store, err := newSnapshotStore(cmd.Context(), &e.cfg.Storage.Snapshot)
	if err != nil {
		return err
	}
	indexPath, metaPath := indexPaths(e.cfg)
	m, err := storage.FetchSnapshot(cmd.Context(), store, indexPath, metaPath)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored snapshot published at %s\n", m.PublishedAt.Format(time.RFC3339))
	return nil
}

func indexPaths(cfg *config.Config) (string, string) {
	metaPath := cfg.Storage.MetadataPath
	if metaPath == "" {
		metaPath = vector.MetadataPath(cfg.Storage.IndexPath)
	}
	return cfg.Storage.IndexPath, metaPath
}

func newSnapshotStore(ctx context.Context, cfg *config.SnapshotConfig) (storage.FileStore, error) {
	switch cfg.Type {
	case "", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("snapshot dir is not configured")
		}
		store, err := storage.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open snapshot dir: %w", err)
		}
		return store, nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("snapshot bucket is not configured")
		}
		client, err := storage.NewS3Client(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		return storage.NewS3Store(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown snapshot store type: %s", cfg.Type)
	}
}
