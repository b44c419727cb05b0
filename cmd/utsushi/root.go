package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/cli"
	"github.com/hyperjump/utsushi/internal/config"
	"github.com/hyperjump/utsushi/pkg/utils"
)

const defaultConfigPath = "/usr/local/etc/utsushi/config.yaml"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "utsushi",
		Short:         "Content-based image retrieval",
		Long:          `Index images by visual features and find the most similar ones for a query image.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().String("config", defaultConfigPath, "config file path")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().StringP("output", "o", "text", "output format: text, compact or json")

	root.AddCommand(
		NewBuildCmd(),
		NewFetchCmd(),
		NewSearchCmd(),
		NewStatusCmd(),
		NewResetCmd(),
		NewServeCmd(),
		NewWatchCmd(),
		NewCatalogCmd(),
		NewSnapshotCmd(),
	)
	return root
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development), and when
// neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// env is what every command needs before touching the index.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	format cli.OutputFormat
	debug  bool
}

func setup(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debugFlag, _ := cmd.Flags().GetBool("debug")
	output, _ := cmd.Flags().GetString("output")

	format, err := cli.ParseOutputFormat(output)
	if err != nil {
		return nil, err
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return &env{cfg: cfg, logger: logger, format: format, debug: debug}, nil
}
