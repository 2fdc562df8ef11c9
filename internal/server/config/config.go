// Package config handles configuration for the sync server: defaults, an
// optional JSON file and short command-line flags, applied in that order.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the sync server.
//
// An empty DatabaseDSN keeps all data in memory.
type Config struct {
	EndpointAddr    string
	DatabaseDSN     string
	ReadOnlyRoles   []string
	PullLimit       int
	ShutdownTimeout time.Duration
	LogLevel        string
}

func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDSN = ""
	c.ReadOnlyRoles = []string{"viewer", "readonly"}
	c.PullLimit = 1000
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// Load applies defaults, then the JSON file named by -c/-config in args,
// then the flags in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
