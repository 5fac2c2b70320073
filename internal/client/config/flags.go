package config

import (
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   address and port of the authentication server
//	-d string   local database path
//	-k string   secret store passphrase
//	-l string   log level
//	-t int      request timeout in seconds
//
// Only these flags are considered (flagx.FilterArgs), so other packages can
// define their own.
func parseFlags(cfg *Config, args []string) error {
	fs := flagx.NewFlagSet("authkeeper")

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the authentication server")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	fs.StringVar(&cfg.Passphrase, "k", cfg.Passphrase, "passphrase sealing the local secret store")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	timeout := fs.Int("t", 0, "request timeout (in seconds)")

	if err := fs.Parse(flagx.FilterArgs(args, "a", "d", "k", "l", "t")); err != nil {
		return err
	}

	// -t overrides only when given, so a sub-second value from the file
	// survives
	if flagx.IsSet(fs, "t") {
		cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	}
	return nil
}
