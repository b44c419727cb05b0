package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/utsushi/internal/cli"
)

// NewBuildCmd indexes the local dataset.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [dataset-root]",
		Short: "Index the local dataset, replacing the current index",
		Long: `Extract features for every image under <dataset-root>/<category> and replace
the index with them. Unreadable or corrupt images are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}
	cmd.Flags().StringSlice("category", nil, "categories to index (default from config)")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	// The build replaces the index, so a damaged persisted index is not loaded.
	c, err := initializeComponents(e.cfg, e.logger, initOptions{skipLoad: true})
	if err != nil {
		return err
	}
	defer c.Close()

	root := e.cfg.Dataset.Root
	if len(args) == 1 {
		root = args[0]
	}
	categories, _ := cmd.Flags().GetStringSlice("category")
	if len(categories) == 0 {
		categories = e.cfg.Dataset.Categories
	}

	report, err := c.Local.Build(cmd.Context(), root, categories)
	if report != nil {
		if werr := cli.WriteBuildReport(cmd.OutOrStdout(), report, e.format); werr != nil {
			return werr
		}
	}
	return err
}
