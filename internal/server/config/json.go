package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/gradekeeper/internal/flagx"
	"github.com/dmitrijs2005/gradekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the server config. Absent keys leave
// the current value alone.
type JsonConfig struct {
	EndpointAddr    *string         `json:"endpoint_addr"`
	DatabaseDSN     *string         `json:"database_dsn"`
	ReadOnlyRoles   []string        `json:"read_only_roles"`
	PullLimit       *int            `json:"pull_limit"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
	LogLevel        *string         `json:"log_level"`
}

// parseJson loads the file named by -c or -config in args, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var c JsonConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.EndpointAddr != nil {
		config.EndpointAddr = *c.EndpointAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.ReadOnlyRoles != nil {
		config.ReadOnlyRoles = c.ReadOnlyRoles
	}
	if c.PullLimit != nil {
		config.PullLimit = *c.PullLimit
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
	return nil
}
