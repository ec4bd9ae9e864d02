// Package config loads runtime configuration for the daybook CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
package config

// Config holds runtime settings for the daybook CLI.
//
// When CryptoSecret is set the client encrypts sensitive fields before they
// leave the device, deriving the key with the configured salt. Left empty,
// rows travel plaintext over TLS and the service encrypts them at rest.
type Config struct {
	ServerBaseURL string
	SyncKey       string
	CryptoSecret  string
	CryptoSalt    string
	DatabasePath  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "daybook.db"
	c.CryptoSalt = "daybook/v1"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
