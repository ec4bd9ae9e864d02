package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/daybook/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       base URL of the sync service
//	-k string       shared sync key sent with every request
//	-d string       path to the local database file
//	-secret string  passphrase for end-to-end field encryption
//	-salt string    salt for key derivation
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-d", "-secret", "-salt"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the sync service")
	fs.StringVar(&cfg.SyncKey, "k", cfg.SyncKey, "shared sync key")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database file")
	fs.StringVar(&cfg.CryptoSecret, "secret", cfg.CryptoSecret, "passphrase for field encryption")
	fs.StringVar(&cfg.CryptoSalt, "salt", cfg.CryptoSalt, "salt for key derivation")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
