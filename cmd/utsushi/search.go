package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/utsushi/internal/cli"
	"github.com/hyperjump/utsushi/internal/models"
)

// NewSearchCmd finds the indexed images most similar to a query image.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <image>",
		Short: "Find indexed images similar to an image file",
		Long: `Extract features from <image> and list the most similar indexed images.
With --query, images matching the text are fetched and indexed first.`,
		Example: `  utsushi search photo.jpg
  utsushi search -k 5 --query "red cars" photo.jpg
  utsushi search -o json photo.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}
	cmd.Flags().IntP("top", "k", 0, "number of results (default from config)")
	cmd.Flags().StringP("query", "q", "", "text query to fetch and index remote images for before searching")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read query image: %w", err)
	}

	c, err := initializeComponents(e.cfg, e.logger, initOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	k, _ := cmd.Flags().GetInt("top")
	text, _ := cmd.Flags().GetString("query")
	response, err := c.Engine.Search(cmd.Context(), &models.ImageQuery{Image: data, Text: text, K: k})
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), response, e.format)
}
