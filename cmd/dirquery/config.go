package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/dirquery/internal/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			errs := config.ValidateConfig(cfg)
			if root.format == "json" {
				return printValidation(cmd, errs)
			}
			if len(errs) > 0 {
				for _, e := range errs {
					cmd.PrintErrf("  - %v\n", e)
				}
				return fmt.Errorf("configuration has %d error(s)", len(errs))
			}
			cmd.Println("Configuration is valid")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

type validationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func printValidation(cmd *cobra.Command, errs []error) error {
	res := validationResult{Valid: len(errs) == 0}
	for _, e := range errs {
		res.Errors = append(res.Errors, e.Error())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("configuration has %d error(s)", len(errs))
	}
	return nil
}
