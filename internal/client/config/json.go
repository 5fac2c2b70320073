package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero so a partial file only overrides
// what it names.
type JsonConfig struct {
	ServerEndpointAddr   *string         `json:"server_endpoint_addr"`
	DatabasePath         *string         `json:"database_path"`
	RequestTimeout       *timex.Duration `json:"request_timeout"`
	ExpirySweepInterval  *timex.Duration `json:"expiry_sweep_interval"`
	RefreshSweepInterval *timex.Duration `json:"refresh_sweep_interval"`
	RefreshWindow        *timex.Duration `json:"refresh_window"`
	DefaultSessionTTL    *timex.Duration `json:"default_session_ttl"`
	LoginRateLimit       *float64        `json:"login_rate_limit"`
	LoginBurst           *int            `json:"login_burst"`
	AuditDSN             *string         `json:"audit_dsn"`
	Location             *string         `json:"location"`
	LogLevel             *string         `json:"log_level"`
	LogFormat            *string         `json:"log_format"`
}

// parseJson overlays cfg with the JSON file named by -c/-config or
// AUTHKEEPER_CONFIG. No file configured means no changes.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.ExpirySweepInterval, jc.ExpirySweepInterval)
	setDuration(&cfg.RefreshSweepInterval, jc.RefreshSweepInterval)
	setDuration(&cfg.RefreshWindow, jc.RefreshWindow)
	setDuration(&cfg.DefaultSessionTTL, jc.DefaultSessionTTL)
	if jc.LoginRateLimit != nil {
		cfg.LoginRateLimit = *jc.LoginRateLimit
	}
	if jc.LoginBurst != nil {
		cfg.LoginBurst = *jc.LoginBurst
	}
	setString(&cfg.AuditDSN, jc.AuditDSN)
	setString(&cfg.Location, jc.Location)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
