// Package appconfig loads the auditor's own configuration file, distinct
// from the per-chain TOML files the chainreg package loads. It recognizes
// the [api], [audit] and [cache] tables below and applies defaults when a
// key is absent. use_binary_transport is read from [api].
package appconfig

import "time"

// Config is the root of the auditor's TOML configuration file.
type Config struct {
	API   APIConfig   `toml:"api"`
	Audit AuditConfig `toml:"audit"`
	Cache CacheConfig `toml:"cache"`
}

// APIConfig controls the multi-endpoint query client (C2).
type APIConfig struct {
	Retries            int    `toml:"retries"`
	DelayMs            int64  `toml:"delay_ms"`
	TimeoutMs          int64  `toml:"timeout_ms"`
	UseBinaryTransport *bool  `toml:"use_binary_transport"`
	SeiFamilyHosts     []string `toml:"sei_family_hosts"`
}

// AuditConfig controls the orchestrator (C7).
type AuditConfig struct {
	DefaultMode string `toml:"default_mode"`
	EscrowPort  string `toml:"escrow_port"`
}

// CacheConfig controls the descriptor/version cache (C3).
type CacheConfig struct {
	VersionCheckIntervalMs int64  `toml:"version_check_interval_ms"`
	SchemaTTLMs            int64  `toml:"schema_ttl_ms"`
	Dir                    string `toml:"dir"`
}

// Delay returns API.DelayMs as a time.Duration.
func (c APIConfig) Delay() time.Duration { return time.Duration(c.DelayMs) * time.Millisecond }

// Timeout returns API.TimeoutMs as a time.Duration.
func (c APIConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

// BinaryTransportPreferred reports whether the binary transport should be
// attempted before the text transport, defaulting to true when unset.
func (c APIConfig) BinaryTransportPreferred() bool {
	if c.UseBinaryTransport == nil {
		return true
	}
	return *c.UseBinaryTransport
}

// VersionCheckInterval returns Cache.VersionCheckIntervalMs as a duration.
func (c CacheConfig) VersionCheckInterval() time.Duration {
	return time.Duration(c.VersionCheckIntervalMs) * time.Millisecond
}

// SchemaTTL returns Cache.SchemaTTLMs as a duration.
func (c CacheConfig) SchemaTTL() time.Duration {
	return time.Duration(c.SchemaTTLMs) * time.Millisecond
}

// Default returns the configuration with every option set to the default
// named in the specification.
func Default() Config {
	useBinary := true
	return Config{
		API: APIConfig{
			Retries:            3,
			DelayMs:            250,
			TimeoutMs:          30_000,
			UseBinaryTransport: &useBinary,
		},
		Audit: AuditConfig{
			DefaultMode: "quick",
			EscrowPort:  "transfer",
		},
		Cache: CacheConfig{
			VersionCheckIntervalMs: 86_400_000,
			SchemaTTLMs:            86_400_000,
			Dir:                    "./data/cache",
		},
	}
}
