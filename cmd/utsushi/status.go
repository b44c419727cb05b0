package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/utsushi/internal/cli"
)

// NewStatusCmd shows the index state and recent builds.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index size, type, disk usage and recent builds",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
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

	status, err := c.Engine.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return cli.WriteStatus(cmd.OutOrStdout(), status, e.format)
}
