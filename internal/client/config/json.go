package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/daybook/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerBaseURL string `json:"server_base_url"`
	SyncKey       string `json:"sync_key"`
	CryptoSecret  string `json:"crypto_secret"`
	CryptoSalt    string `json:"crypto_salt"`
	DatabasePath  string `json:"database_path"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags; with neither present nothing is
// loaded. Only fields present in the file override the current values.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.SyncKey != "" {
		cfg.SyncKey = jc.SyncKey
	}
	if jc.CryptoSecret != "" {
		cfg.CryptoSecret = jc.CryptoSecret
	}
	if jc.CryptoSalt != "" {
		cfg.CryptoSalt = jc.CryptoSalt
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
}
