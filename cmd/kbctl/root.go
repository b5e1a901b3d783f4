package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kunskapsportal-search-api/internal/config"
	"github.com/kunskapsportal-search-api/internal/logging"
	"github.com/kunskapsportal-search-api/internal/sources"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "kbctl",
	Short:         "Knowledge base admin tool",
	Long:          `kbctl lists external sources, runs searches and prepares vector collections.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// newLogger logs to stderr so command output stays clean
func newLogger() *zap.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadRegistry reads the external source configuration from the environment
func loadRegistry(logger *zap.Logger) (*sources.Registry, error) {
	cfg := config.Load()
	configs, err := sources.Load(cfg.ExternalSourcesFile, cfg.ExternalSourcesInline)
	if err != nil {
		return nil, err
	}
	return sources.NewRegistry(configs, logger), nil
}
