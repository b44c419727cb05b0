package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/utsushi/internal/catalog"
)

// NewCatalogCmd manages the catalog of remote image locators.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the catalog of remote images used by fetch",
	}
	cmd.AddCommand(newCatalogImportCmd(), newCatalogSearchCmd(), newCatalogCountCmd(), newCatalogDeleteCmd())
	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Import catalog records from a JSON lines file (- for stdin)",
		Long: `Each line is one record: {"url": "...", "title": "...", "category": "...", "tags": ["..."]}.
Records with an existing url replace the stored one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			cat, err := catalog.Open(e.cfg.Storage.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			n, err := cat.Import(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records\n", n)
			return nil
		},
	}
}

func newCatalogSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List catalog urls matching a text query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			cat, err := catalog.Open(e.cfg.Storage.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			urls, err := cat.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "maximum urls")
	return cmd
}

func newCatalogCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of catalog records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			cat, err := catalog.Open(e.cfg.Storage.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			n, err := cat.Count()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newCatalogDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url>...",
		Short: "Remove records from the catalog by url",
		Long:  `Remove catalog records so fetch no longer offers them. Images already indexed stay in the index.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			cat, err := catalog.Open(e.cfg.Storage.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			for _, u := range args {
				if err := cat.Delete(cmd.Context(), u); err != nil {
					return fmt.Errorf("delete %s: %w", u, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records\n", len(args))
			return nil
		},
	}
}
