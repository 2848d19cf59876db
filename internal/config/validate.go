package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/KilimcininKorOglu/dirquery/internal/client"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every problem in c joined into one error, or nil.
func (c *Config) Validate() error {
	return errors.Join(ValidateConfig(c)...)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error
	errs = append(errs, validateDirectoryConfig(&config.Directory)...)
	errs = append(errs, validateQueryConfig(&config.Query)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	errs = append(errs, validateMetricsConfig(&config.Metrics)...)
	errs = append(errs, validateTracingConfig(&config.Tracing)...)
	return errs
}

func validateDirectoryConfig(config *DirectoryConfig) []error {
	var errs []error

	if config.Address != "" {
		if _, _, err := net.SplitHostPort(config.Address); err != nil && !strings.Contains(err.Error(), "missing port") {
			errs = append(errs, ValidationError{
				Field:   "directory.address",
				Message: err.Error(),
			})
		}
	}

	if err := validateDN(config.BaseDN); err != nil {
		errs = append(errs, ValidationError{Field: "directory.baseDN", Message: err.Error()})
	}
	if err := validateDN(config.BindDN); err != nil {
		errs = append(errs, ValidationError{Field: "directory.bindDN", Message: err.Error()})
	}

	if config.BindDN != "" && config.BindPassword == "" {
		errs = append(errs, ValidationError{
			Field:   "directory.bindPassword",
			Message: "required when bindDN is set",
		})
	}

	if _, err := client.ParseTLSVersion(config.TLSMinVersion); err != nil {
		errs = append(errs, ValidationError{Field: "directory.tlsMinVersion", Message: err.Error()})
	}

	if config.CAFile != "" {
		if _, err := os.Stat(config.CAFile); err != nil {
			errs = append(errs, ValidationError{Field: "directory.caFile", Message: err.Error()})
		}
	}

	if config.DialTimeout < 0 {
		errs = append(errs, ValidationError{Field: "directory.dialTimeout", Message: "must be non-negative"})
	}
	if config.RequestTimeout < 0 {
		errs = append(errs, ValidationError{Field: "directory.requestTimeout", Message: "must be non-negative"})
	}
	if config.MaxPacketSize < 0 {
		errs = append(errs, ValidationError{Field: "directory.maxPacketSize", Message: "must be non-negative"})
	}

	return errs
}

func validateQueryConfig(config *QueryConfig) []error {
	var errs []error

	if config.DefaultPageSize <= 0 {
		errs = append(errs, ValidationError{Field: "query.defaultPageSize", Message: "must be positive"})
	}
	if config.MaxPageSize < 0 {
		errs = append(errs, ValidationError{Field: "query.maxPageSize", Message: "must be non-negative"})
	}
	if config.MaxPageSize > 0 && config.DefaultPageSize > config.MaxPageSize {
		errs = append(errs, ValidationError{
			Field:   "query.defaultPageSize",
			Message: fmt.Sprintf("exceeds maxPageSize %d", config.MaxPageSize),
		})
	}

	return errs
}

// validateLogConfig validates logging configuration.
func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

func validateMetricsConfig(config *MetricsConfig) []error {
	if !config.Enabled {
		return nil
	}

	var errs []error
	if err := validateAddress(config.Address); err != nil {
		errs = append(errs, ValidationError{Field: "metrics.address", Message: err.Error()})
	}
	if !strings.HasPrefix(config.Path, "/") {
		errs = append(errs, ValidationError{Field: "metrics.path", Message: "must start with /"})
	}
	return errs
}

func validateTracingConfig(config *TracingConfig) []error {
	var errs []error
	if config.Enabled && config.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "tracing.endpoint", Message: "required when tracing is enabled"})
	}
	if config.SampleRatio < 0 || config.SampleRatio > 1 {
		errs = append(errs, ValidationError{Field: "tracing.sampleRatio", Message: "must be between 0 and 1"})
	}
	return errs
}

func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %v", err)
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// validateDN validates a distinguished name format.
func validateDN(dn string) error {
	if dn == "" {
		return nil
	}

	for _, part := range strings.Split(dn, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("empty RDN in %q", dn)
		}
		if !strings.Contains(part, "=") {
			return fmt.Errorf("invalid RDN format: %s", part)
		}
	}

	return nil
}
