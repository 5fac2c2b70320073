package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// PassphraseEnvVar holds the secret store passphrase when no flag is given.
const PassphraseEnvVar = "AUTHKEEPER_PASSPHRASE"

// Config holds runtime settings for the authkeeper CLI.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string
	Passphrase         string

	RequestTimeout       time.Duration
	ExpirySweepInterval  time.Duration
	RefreshSweepInterval time.Duration
	RefreshWindow        time.Duration
	DefaultSessionTTL    time.Duration

	// LoginRateLimit is the sustained number of login attempts per second
	// allowed locally; LoginBurst the bucket size.
	LoginRateLimit float64
	LoginBurst     int

	AuditDSN string
	Location string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "authkeeper.db"
	c.RequestTimeout = 10 * time.Second
	c.ExpirySweepInterval = 60 * time.Second
	c.RefreshSweepInterval = 30 * time.Second
	c.RefreshWindow = 5 * time.Minute
	c.DefaultSessionTTL = time.Hour
	c.LoginRateLimit = 0.2
	c.LoginBurst = 5
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate rejects settings the session manager cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerEndpointAddr == "" {
		errs = append(errs, errors.New("server endpoint address is empty"))
	}
	for name, d := range map[string]time.Duration{
		"request timeout":        c.RequestTimeout,
		"expiry sweep interval":  c.ExpirySweepInterval,
		"refresh sweep interval": c.RefreshSweepInterval,
		"refresh window":         c.RefreshWindow,
		"default session ttl":    c.DefaultSessionTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RefreshWindow > 0 && c.RefreshSweepInterval > 0 && c.RefreshWindow <= c.RefreshSweepInterval {
		errs = append(errs, fmt.Errorf("refresh window %s must exceed refresh sweep interval %s", c.RefreshWindow, c.RefreshSweepInterval))
	}
	if c.LoginRateLimit < 0 || c.LoginBurst < 0 {
		errs = append(errs, errors.New("login rate limit and burst must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, the optional JSON file, the
// environment and finally the flags found in args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if p := os.Getenv(PassphraseEnvVar); p != "" {
		cfg.Passphrase = p
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
