// Package cmd implements the driftwatch CLI commands using Cobra.
// It provides the serve daemon, a one-shot check command, and helpers for
// inspecting configuration and build information.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmgilman/driftwatch/internal/config"
	"github.com/jmgilman/driftwatch/internal/slogger"
)

var (
	// cfgFile is the --config flag value.
	cfgFile string

	// verbosity is the accumulated -v count.
	verbosity int

	// jsonLog is the --log-json flag value.
	jsonLog bool
)

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "Report stale container images running on a Nomad cluster",
	Long: `Driftwatch periodically inspects the jobs of a Nomad cluster, queries
each task's container registry for published tags, and reports per-task
image freshness as Prometheus metrics.

Tasks pinned to an older semantic version than the newest fully-qualified
tag their registry publishes are flagged as out of date.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v for debug)")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "log-json", false, "log in machine-readable JSON")
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader, err := config.NewLoader(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("init config loader: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbosity > 0 {
		cfg.Log.Verbosity = verbosity
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = jsonLog
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config) *slog.Logger {
	return slogger.New(slogger.Config{
		Verbosity: cfg.Log.Verbosity,
		JSON:      cfg.Log.JSON,
	})
}
