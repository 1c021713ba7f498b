package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tkingovr/portal/internal/config"
	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/filter"
	"github.com/tkingovr/portal/internal/logging"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	logLevel  string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Portal - declarative HTTP routing built from composable filters",
	Long: `Portal serves HTTP from a route table. Each route is compiled into a
tree of filters that match the path, method, headers and query, guard the
request with policy, secret scanning and rate limits, and produce a reply
from a directory, a file, a fixed response or an upstream server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if verbose && level == "" {
			level = "debug"
		}
		l, err := logging.New(logFormat, level, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "route table file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config, or returns the built-in single route table.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// dispatchOptions returns the dispatcher options implied by the settings.
func dispatchOptions(cfg *config.Config) []dispatch.Option {
	var opts []dispatch.Option
	if st := cfg.NotFoundStatus; st != 0 {
		opts = append(opts, dispatch.WithStatusMapper(func(rej *filter.Rejection) int {
			if rej.Kind == filter.KindNotFound && rej.Status == 0 {
				return st
			}
			return rej.StatusCode()
		}))
	}
	return opts
}
