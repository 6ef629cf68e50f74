// Package server implements the HTTP interface of elograph.
//
// This file defines the server configuration and its two sources: an
// optional YAML file and ELO_* environment variables, with the environment
// taking precedence so containerized deployments can override the file.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration of the HTTP server.
type Config struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`

	// APIKey protects every endpoint except /healthz and /metrics via the
	// x-api-key header. Empty disables authentication.
	APIKey string `yaml:"api_key"`

	// AofRewritePercentage is passed through to the engine's journal
	// compaction policy.
	AofRewritePercentage int `yaml:"aof_rewrite_percentage"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		Host:                 "127.0.0.1",
		Port:                 3000,
		DataDir:              "./data",
		AofRewritePercentage: 100,
	}
}

// LoadConfig reads the YAML configuration file, then applies environment
// overrides. An empty path skips the file and uses defaults.
// It uses Strict Mode (KnownFields) to prevent silent errors due to typos.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("could not read configuration file '%s': %w", path, err)
		}
		expandedData := os.ExpandEnv(string(data))

		decoder := yaml.NewDecoder(strings.NewReader(expandedData))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ELO_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("ELO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid ELO_PORT %q", v)
		}
		c.Port = port
	}
	if v := os.Getenv("ELO_DB_PATH"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ELO_API_KEY"); v != "" {
		c.APIKey = v
	}
	return nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
