package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/dirquery/internal/config"
	"github.com/KilimcininKorOglu/dirquery/internal/logging"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	fixture    string
	format     string
	logLevel   string

	cfg    *config.Config
	logger logging.Logger
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dirquery",
		Short:         "Typed, paged queries against an LDAP directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.fixture, "fixture", "", "query a YAML directory fixture instead of a server")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newCountCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// load reads and validates the configuration and builds the logger.
func (o *rootOptions) load() error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger, err := logging.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}
