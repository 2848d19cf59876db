package config

import (
	"time"

	"github.com/KilimcininKorOglu/dirquery/internal/client"
	"github.com/KilimcininKorOglu/dirquery/internal/logging"
	"github.com/KilimcininKorOglu/dirquery/internal/tracing"
)

// Config holds the complete dirquery configuration.
type Config struct {
	Directory DirectoryConfig `yaml:"directory" envPrefix:"DIRECTORY_"`
	Query     QueryConfig     `yaml:"query" envPrefix:"QUERY_"`
	Logging   LogConfig       `yaml:"logging" envPrefix:"LOG_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Tracing   TracingConfig   `yaml:"tracing" envPrefix:"TRACING_"`
}

// DirectoryConfig describes the LDAP server queries run against.
type DirectoryConfig struct {
	Address            string        `yaml:"address" env:"ADDRESS"`
	TLS                bool          `yaml:"tls" env:"TLS"`
	CAFile             string        `yaml:"caFile" env:"CA_FILE"`
	ServerName         string        `yaml:"serverName" env:"SERVER_NAME"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify" env:"INSECURE_SKIP_VERIFY"`
	TLSMinVersion      string        `yaml:"tlsMinVersion" env:"TLS_MIN_VERSION"`
	BindDN             string        `yaml:"bindDN" env:"BIND_DN"`
	BindPassword       string        `yaml:"bindPassword" env:"BIND_PASSWORD"`
	BaseDN             string        `yaml:"baseDN" env:"BASE_DN"`
	DialTimeout        time.Duration `yaml:"dialTimeout" env:"DIAL_TIMEOUT"`
	RequestTimeout     time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`
	MaxPacketSize      int           `yaml:"maxPacketSize" env:"MAX_PACKET_SIZE"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	DefaultPageSize int `yaml:"defaultPageSize" env:"DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `yaml:"maxPageSize" env:"MAX_PAGE_SIZE"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Address string `yaml:"address" env:"ADDRESS"`
	Path    string `yaml:"path" env:"PATH"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string  `yaml:"serviceName" env:"SERVICE_NAME"`
	SampleRatio float64 `yaml:"sampleRatio" env:"SAMPLE_RATIO"`
}

const redacted = "********"

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Directory.BindPassword != "" {
		out.Directory.BindPassword = redacted
	}
	return &out
}

// ClientConfig converts the directory section for client.Dial.
func (d DirectoryConfig) ClientConfig() (client.Config, error) {
	cfg := client.Config{
		Address:        d.Address,
		TLS:            d.TLS,
		BindDN:         d.BindDN,
		Password:       d.BindPassword,
		DialTimeout:    d.DialTimeout,
		RequestTimeout: d.RequestTimeout,
		MaxPacketSize:  d.MaxPacketSize,
	}
	if d.TLS {
		minVersion, err := client.ParseTLSVersion(d.TLSMinVersion)
		if err != nil {
			return client.Config{}, err
		}
		cfg.TLSConfig = &client.TLSConfig{
			CAFile:             d.CAFile,
			ServerName:         d.ServerName,
			InsecureSkipVerify: d.InsecureSkipVerify,
			MinVersion:         minVersion,
		}
	}
	return cfg, nil
}

// LoggerConfig converts the logging section.
func (l LogConfig) LoggerConfig() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}

// TracerConfig converts the tracing section.
func (t TracingConfig) TracerConfig() tracing.Config {
	return tracing.Config{
		Enabled:     t.Enabled,
		Endpoint:    t.Endpoint,
		ServiceName: t.ServiceName,
		SampleRatio: t.SampleRatio,
	}
}
