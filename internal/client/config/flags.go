package config

import (
	"github.com/spf13/pflag"
)

// Flags binds the CLI's persistent flags. Values from flags the user did not
// set never override the JSON file.
type Flags struct {
	fs         *pflag.FlagSet
	v          Config
	configPath string
}

// RegisterFlags defines the configuration flags on fs.
//
//	-c, --config          JSON config file
//	-a, --server          base URL of the sync server
//	-r, --role            role identifier sent with every request
//	-d, --data-dir        directory holding the local databases
//	-b, --batch-size      changes per push
//	-i, --sync-interval   flush timer period
//	    --online-check    reachability probe period
//	    --fast-quota      fast tier byte ceiling
//	-l, --log-level       debug, info, warn or error
//	    --encrypt         encrypt stored records
//	    --compress        gzip stored records
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Default()

	fs.StringVarP(&f.configPath, "config", "c", "", "path to JSON config file")
	fs.StringVarP(&f.v.ServerURL, "server", "a", d.ServerURL, "base URL of the sync server")
	fs.StringVarP(&f.v.Role, "role", "r", d.Role, "role identifier sent to the server")
	fs.StringVarP(&f.v.DataDir, "data-dir", "d", d.DataDir, "directory for local data")
	fs.IntVarP(&f.v.BatchSize, "batch-size", "b", d.BatchSize, "changes per push")
	fs.DurationVarP(&f.v.SyncInterval, "sync-interval", "i", d.SyncInterval, "flush timer period")
	fs.DurationVar(&f.v.OnlineCheckInterval, "online-check", d.OnlineCheckInterval, "server reachability probe period")
	fs.Int64Var(&f.v.FastQuota, "fast-quota", d.FastQuota, "fast tier byte ceiling")
	fs.StringVarP(&f.v.LogLevel, "log-level", "l", d.LogLevel, "log level")
	fs.BoolVar(&f.v.Encrypt, "encrypt", d.Encrypt, "encrypt stored records")
	fs.BoolVar(&f.v.Compress, "compress", d.Compress, "compress stored records")
	return f
}

// Load builds a Config: defaults, then the JSON file named by --config, then
// the flags that were set explicitly.
func (f *Flags) Load() (*Config, error) {
	cfg := Default()
	if f.configPath != "" {
		if err := parseJson(cfg, f.configPath); err != nil {
			return nil, err
		}
	}

	changed := func(name string) bool { return f.fs.Changed(name) }
	if changed("server") {
		cfg.ServerURL = f.v.ServerURL
	}
	if changed("role") {
		cfg.Role = f.v.Role
	}
	if changed("data-dir") {
		cfg.DataDir = f.v.DataDir
	}
	if changed("batch-size") {
		cfg.BatchSize = f.v.BatchSize
	}
	if changed("sync-interval") {
		cfg.SyncInterval = f.v.SyncInterval
	}
	if changed("online-check") {
		cfg.OnlineCheckInterval = f.v.OnlineCheckInterval
	}
	if changed("fast-quota") {
		cfg.FastQuota = f.v.FastQuota
	}
	if changed("log-level") {
		cfg.LogLevel = f.v.LogLevel
	}
	if changed("encrypt") {
		cfg.Encrypt = f.v.Encrypt
	}
	if changed("compress") {
		cfg.Compress = f.v.Compress
	}
	return cfg, nil
}
