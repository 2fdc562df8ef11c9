package config

import (
	"flag"
	"strings"

	"github.com/dmitrijs2005/gradekeeper/internal/flagx"
)

// parseFlags overlays config with the flags it recognises in args; others
// are ignored.
//
//	-a string     listen address (":8080")
//	-d string     PostgreSQL DSN, empty for in-memory storage
//	-o string     comma separated read-only roles
//	-n int        maximum items per pull response
//	-t duration   graceful shutdown timeout
//	-l string     log level
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, "a", "d", "o", "n", "t", "l")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	roles := fs.String("o", strings.Join(config.ReadOnlyRoles, ","), "read-only roles")
	fs.IntVar(&config.PullLimit, "n", config.PullLimit, "max items per pull")
	fs.DurationVar(&config.ShutdownTimeout, "t", config.ShutdownTimeout, "shutdown timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.ReadOnlyRoles = splitRoles(*roles)
	return nil
}

func splitRoles(s string) []string {
	out := []string{}
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
