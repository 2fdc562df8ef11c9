package config

import (
	"time"
)

// Config holds runtime settings for the gradekeeper CLI.
type Config struct {
	ServerURL           string
	Role                string
	DataDir             string
	BatchSize           int
	SyncInterval        time.Duration
	OnlineCheckInterval time.Duration
	FastQuota           int64
	LogLevel            string
	Encrypt             bool
	Compress            bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Role = ""
	c.DataDir = ".gradekeeper"
	c.BatchSize = 50
	c.SyncInterval = time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.FastQuota = 5 * 1024 * 1024
	c.LogLevel = "info"
	c.Encrypt = false
	c.Compress = true
}

func Default() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}
