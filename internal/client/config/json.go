package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/gradekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero so a file only overrides what it
// names.
type JsonConfig struct {
	ServerURL           *string         `json:"server_url"`
	Role                *string         `json:"role"`
	DataDir             *string         `json:"data_dir"`
	BatchSize           *int            `json:"batch_size"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	FastQuota           *int64          `json:"fast_quota"`
	LogLevel            *string         `json:"log_level"`
	Encrypt             *bool           `json:"encrypt"`
	Compress            *bool           `json:"compress"`
}

// parseJson overlays cfg with the file at path. Comments and trailing
// commas are allowed.
func parseJson(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setIf(&cfg.ServerURL, jc.ServerURL)
	setIf(&cfg.Role, jc.Role)
	setIf(&cfg.DataDir, jc.DataDir)
	setIf(&cfg.BatchSize, jc.BatchSize)
	setIf(&cfg.FastQuota, jc.FastQuota)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.Encrypt, jc.Encrypt)
	setIf(&cfg.Compress, jc.Compress)
	if jc.SyncInterval != nil {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
