package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCmd empties the index.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every image from the index",
		Long:  `Empty the index and persist the empty state. This also recovers from a damaged index file pair.`,
		Args:  cobra.NoArgs,
		RunE:  runReset,
	}
}

func runReset(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	c, err := initializeComponents(e.cfg, e.logger, initOptions{skipLoad: true})
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Engine.Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Index reset: %s\n", e.cfg.Storage.IndexPath)
	return nil
}
