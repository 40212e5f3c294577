// Package config loads the YAML configuration for rwfilter and
// rwaggbagtool, in the same nested-struct-with-yaml-tags-plus-defaulting
// shape the teacher's telemetry-agent command uses for its own
// configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FilterConfig is rwfilter's on-disk configuration. Command-line flags
// always take precedence over a loaded FilterConfig; the file exists so
// repeated invocations against the same sensor fleet don't need to
// restate every flag.
type FilterConfig struct {
	Pipeline struct {
		Workers       int  `yaml:"workers"`
		MaxPassRecords int `yaml:"max_pass_records"`
		OutputBufferBytes int `yaml:"output_buffer_bytes"`
	} `yaml:"pipeline"`
	Inputs struct {
		Paths    []string `yaml:"paths"`
		FromFile string   `yaml:"from_file"`
	} `yaml:"inputs"`
	Monitoring struct {
		StatsInterval  int  `yaml:"stats_interval"`
		PrometheusPort int  `yaml:"prometheus_port"`
		Enabled        bool `yaml:"enabled"`
	} `yaml:"monitoring"`
	Archive struct {
		Enabled      bool   `yaml:"enabled"`
		DSN          string `yaml:"dsn"`
		BatchSize    int    `yaml:"batch_size"`
		FlushSeconds int    `yaml:"flush_seconds"`
	} `yaml:"archive"`
}

// AggBagConfig is rwaggbagtool's on-disk configuration.
type AggBagConfig struct {
	Compression string `yaml:"compression"`
	Monitoring  struct {
		PrometheusPort int  `yaml:"prometheus_port"`
		Enabled        bool `yaml:"enabled"`
	} `yaml:"monitoring"`
}

// LoadFilterConfig reads and parses path, applying the same defaults the
// teacher's loadConfig does for zero-valued fields.
func LoadFilterConfig(path string) (FilterConfig, error) {
	var cfg FilterConfig
	if path == "" {
		applyFilterDefaults(&cfg)
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	applyFilterDefaults(&cfg)
	return cfg, nil
}

func applyFilterDefaults(cfg *FilterConfig) {
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 1
	}
	if cfg.Pipeline.OutputBufferBytes == 0 {
		cfg.Pipeline.OutputBufferBytes = 64 * 1024
	}
	if cfg.Monitoring.StatsInterval == 0 {
		cfg.Monitoring.StatsInterval = 30
	}
	if cfg.Archive.BatchSize == 0 {
		cfg.Archive.BatchSize = 1000
	}
	if cfg.Archive.FlushSeconds == 0 {
		cfg.Archive.FlushSeconds = 5
	}
}

// LoadAggBagConfig reads and parses path, defaulting to an uncompressed,
// monitoring-disabled configuration when path is empty.
func LoadAggBagConfig(path string) (AggBagConfig, error) {
	var cfg AggBagConfig
	if path == "" {
		cfg.Compression = "none"
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Compression == "" {
		cfg.Compression = "none"
	}
	return cfg, nil
}
