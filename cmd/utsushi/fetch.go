package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/utsushi/internal/cli"
)

// NewFetchCmd indexes remote images found in the catalog for a text query.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <query>",
		Short: "Fetch and index images matching a text query",
		Long: `Look up image URLs for <query> in the catalog, download them concurrently and
append the ones that decode to the index. Query is all remaining arguments joined by spaces.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetch,
	}
	cmd.Flags().IntP("max", "n", 0, "maximum candidates to fetch (default from config)")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
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

	maxResults, _ := cmd.Flags().GetInt("max")
	if maxResults <= 0 {
		maxResults = e.cfg.Remote.MaxResults
	}
	report, err := c.Remote.Build(cmd.Context(), strings.Join(args, " "), maxResults)
	if report != nil {
		if werr := cli.WriteBuildReport(cmd.OutOrStdout(), report, e.format); werr != nil {
			return werr
		}
	}
	return err
}
