package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/flagx"
	"github.com/dmitrijs2005/shiftdesk/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO decoded from a JSON or YAML config file. Absent or
// zero fields leave the corresponding Config value untouched.
type FileConfig struct {
	BaseURL           string         `json:"base_url" yaml:"base_url"`
	SocketURL         string         `json:"socket_url" yaml:"socket_url"`
	Language          string         `json:"language" yaml:"language"`
	RequestTimeout    timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	RequestsPerSecond float64        `json:"requests_per_second" yaml:"requests_per_second"`

	StrictDecryption *bool  `json:"strict_decryption" yaml:"strict_decryption"`
	PayloadKey       string `json:"payload_key" yaml:"payload_key"`
	PayloadKeySalt   string `json:"payload_key_salt" yaml:"payload_key_salt"`

	ConnectTimeout       timex.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ReconnectBaseDelay   timex.Duration `json:"reconnect_base_delay" yaml:"reconnect_base_delay"`
	ReconnectMaxAttempts int            `json:"reconnect_max_attempts" yaml:"reconnect_max_attempts"`
	HealthCheckInterval  timex.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	HealthCheckTimeout   timex.Duration `json:"health_check_timeout" yaml:"health_check_timeout"`
	ReconcileDelay       timex.Duration `json:"reconcile_delay" yaml:"reconcile_delay"`
	ContractEventDelay   timex.Duration `json:"contract_event_delay" yaml:"contract_event_delay"`

	LoginPath     string `json:"login_path" yaml:"login_path"`
	SessionCookie string `json:"session_cookie" yaml:"session_cookie"`

	LogBackend  string `json:"log_backend" yaml:"log_backend"`
	LogFormat   string `json:"log_format" yaml:"log_format"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// parseFile overlays cfg with the file named by -c/-config, if any.
// Panics on read or decode errors.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.BaseURL, fc.BaseURL)
	setString(&cfg.SocketURL, fc.SocketURL)
	setString(&cfg.Language, fc.Language)
	setDuration(&cfg.RequestTimeout, fc.RequestTimeout)
	if fc.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = fc.RequestsPerSecond
	}

	if fc.StrictDecryption != nil {
		cfg.StrictDecryption = *fc.StrictDecryption
	}
	setString(&cfg.PayloadKey, fc.PayloadKey)
	setString(&cfg.PayloadKeySalt, fc.PayloadKeySalt)

	setDuration(&cfg.ConnectTimeout, fc.ConnectTimeout)
	setDuration(&cfg.ReconnectBaseDelay, fc.ReconnectBaseDelay)
	if fc.ReconnectMaxAttempts > 0 {
		cfg.ReconnectMaxAttempts = fc.ReconnectMaxAttempts
	}
	setDuration(&cfg.HealthCheckInterval, fc.HealthCheckInterval)
	setDuration(&cfg.HealthCheckTimeout, fc.HealthCheckTimeout)
	setDuration(&cfg.ReconcileDelay, fc.ReconcileDelay)
	setDuration(&cfg.ContractEventDelay, fc.ContractEventDelay)

	setString(&cfg.LoginPath, fc.LoginPath)
	setString(&cfg.SessionCookie, fc.SessionCookie)

	setString(&cfg.LogBackend, fc.LogBackend)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
