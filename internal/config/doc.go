// Package config loads, validates, and defaults the marketpipe TOML
// configuration. Every long-lived component receives a *Config at
// construction; nothing reads environment state after startup.
package config
