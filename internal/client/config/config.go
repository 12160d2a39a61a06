package config

import "time"

// Config holds runtime settings of the shiftdesk client.
//
// The env tags name the environment variables read by parseEnv.
type Config struct {
	BaseURL           string        `env:"SHIFTDESK_BASE_URL"`
	SocketURL         string        `env:"SHIFTDESK_SOCKET_URL"`
	Language          string        `env:"SHIFTDESK_LANGUAGE"`
	RequestTimeout    time.Duration `env:"SHIFTDESK_REQUEST_TIMEOUT"`
	RequestsPerSecond float64       `env:"SHIFTDESK_REQUESTS_PER_SECOND"`

	// StrictDecryption makes an undecryptable response body a hard failure.
	// When false the body is logged and passed through unchanged.
	StrictDecryption bool   `env:"SHIFTDESK_STRICT_DECRYPTION"`
	PayloadKey       string `env:"SHIFTDESK_PAYLOAD_KEY"`
	PayloadKeySalt   string `env:"SHIFTDESK_PAYLOAD_KEY_SALT"`

	ConnectTimeout       time.Duration `env:"SHIFTDESK_CONNECT_TIMEOUT"`
	ReconnectBaseDelay   time.Duration `env:"SHIFTDESK_RECONNECT_BASE_DELAY"`
	ReconnectMaxAttempts int           `env:"SHIFTDESK_RECONNECT_MAX_ATTEMPTS"`
	HealthCheckInterval  time.Duration `env:"SHIFTDESK_HEALTH_CHECK_INTERVAL"`
	HealthCheckTimeout   time.Duration `env:"SHIFTDESK_HEALTH_CHECK_TIMEOUT"`
	ReconcileDelay       time.Duration `env:"SHIFTDESK_RECONCILE_DELAY"`
	ContractEventDelay   time.Duration `env:"SHIFTDESK_CONTRACT_EVENT_DELAY"`

	LoginPath     string `env:"SHIFTDESK_LOGIN_PATH"`
	SessionCookie string `env:"SHIFTDESK_SESSION_COOKIE"`

	LogBackend  string `env:"SHIFTDESK_LOG_BACKEND"`
	LogFormat   string `env:"SHIFTDESK_LOG_FORMAT"`
	LogLevel    string `env:"SHIFTDESK_LOG_LEVEL"`
	MetricsAddr string `env:"SHIFTDESK_METRICS_ADDR"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:3000/api"
	c.SocketURL = "ws://127.0.0.1:3000/socket"
	c.Language = "en"
	c.RequestTimeout = 30 * time.Second
	c.RequestsPerSecond = 0

	c.StrictDecryption = true
	c.PayloadKey = ""
	c.PayloadKeySalt = ""

	c.ConnectTimeout = 20 * time.Second
	c.ReconnectBaseDelay = time.Second
	c.ReconnectMaxAttempts = 5
	c.HealthCheckInterval = 30 * time.Second
	c.HealthCheckTimeout = 5 * time.Second
	c.ReconcileDelay = time.Second
	c.ContractEventDelay = 500 * time.Millisecond

	c.LoginPath = "/login"
	c.SessionCookie = ""

	c.LogBackend = "slog"
	c.LogFormat = "text"
	c.LogLevel = "info"
	c.MetricsAddr = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file, the environment and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
