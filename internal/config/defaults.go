package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Directory: DirectoryConfig{
			Address:        "localhost:389",
			TLSMinVersion:  "1.2",
			DialTimeout:    10 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxPacketSize:  16 << 20,
		},
		Query: QueryConfig{
			DefaultPageSize: 500,
			MaxPageSize:     1000,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9464",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "dirquery",
			SampleRatio: 1,
		},
	}
}
