// Package config loads runtime configuration for the gradekeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/--config. Comments are allowed.
//  3. Command-line flags that were set explicitly (see RegisterFlags).
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  // where the sync server lives
//	  "server_url": "http://127.0.0.1:8080",
//	  "role": "lecturer",
//	  "data_dir": ".gradekeeper",
//	  "batch_size": 50,
//	  "sync_interval": "1s",
//	  "online_check_interval": "3s",
//	  "fast_quota": 5242880,
//	  "log_level": "info",
//	  "encrypt": false,
//	  "compress": true
//	}
package config
