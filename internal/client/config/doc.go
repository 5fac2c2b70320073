// Package config loads runtime configuration for the authkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or AUTHKEEPER_CONFIG.
//  3. AUTHKEEPER_PASSPHRASE for the local secret store passphrase.
//  4. Command-line flags, which override everything above.
//
// Supported flags
//
//	-a string   address:port of the authentication gRPC endpoint
//	-d string   path of the local SQLite database
//	-k string   passphrase sealing the local secret store
//	-l string   log level (debug, info, warn, error)
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Durations use timex.Duration, so values are strings like "30s" or integer
// nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "authkeeper.db",
//	  "request_timeout": "10s",
//	  "expiry_sweep_interval": "60s",
//	  "refresh_sweep_interval": "30s",
//	  "refresh_window": "5m",
//	  "default_session_ttl": "1h",
//	  "login_rate_limit": 0.2,
//	  "login_burst": 5,
//	  "audit_dsn": "postgres://audit@db/security",
//	  "location": "office-riga",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
package config
