package config

import "time"

// Supported db_driver values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// DBDriver selects the message store: "sqlite" or "postgres".
	DBDriver     string `mapstructure:"db_driver" yaml:"db_driver"`
	DatabasePath string `mapstructure:"db_path" yaml:"db_path"`
	DatabaseURL  string `mapstructure:"database_url" yaml:"database_url"`
	// RedisURL enables the presence mirror when set.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	MaxMessageBytes    int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// SendRateLimit caps send_message per connection per minute; 0 disables it.
	SendRateLimit int `mapstructure:"send_rate_limit" yaml:"send_rate_limit"`

	HistoryLimit   int           `mapstructure:"history_limit" yaml:"history_limit"`
	PersistWorkers int           `mapstructure:"persist_workers" yaml:"persist_workers"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`

	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":5000",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DBDriver:           DriverSQLite,
		DatabasePath:       "wiredm.db",
		JWTSecret:          "change-me",
		JWTIssuer:          "wiredm",
		JWTAudience:        "wiredm-clients",
		JWTTTL:             24 * time.Hour,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		MaxMessageBytes:    64 << 10,
		HistoryLimit:       50,
		PersistWorkers:     4,
		PersistTimeout:     5 * time.Second,
		RetryAttempts:      3,
		RetryBackoff:       50 * time.Millisecond,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// A zero value in other means "not set", so an override cannot turn a
// setting down to zero.
func (c *Config) UpdateFrom(other Config) {
	setString(&c.Addr, other.Addr)
	setDuration(&c.ReadHeaderTimeout, other.ReadHeaderTimeout)
	setDuration(&c.ShutdownTimeout, other.ShutdownTimeout)

	setString(&c.LogLevel, other.LogLevel)
	setString(&c.LogFormat, other.LogFormat)

	setString(&c.DBDriver, other.DBDriver)
	setString(&c.DatabasePath, other.DatabasePath)
	setString(&c.DatabaseURL, other.DatabaseURL)
	setString(&c.RedisURL, other.RedisURL)

	setString(&c.JWTSecret, other.JWTSecret)
	setString(&c.JWTIssuer, other.JWTIssuer)
	setString(&c.JWTAudience, other.JWTAudience)
	setDuration(&c.JWTTTL, other.JWTTTL)

	if other.CORSAllowedOrigins != nil {
		c.CORSAllowedOrigins = append([]string(nil), other.CORSAllowedOrigins...)
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	setInt(&c.SendRateLimit, other.SendRateLimit)

	setInt(&c.HistoryLimit, other.HistoryLimit)
	setInt(&c.PersistWorkers, other.PersistWorkers)
	setDuration(&c.PersistTimeout, other.PersistTimeout)

	setInt(&c.RetryAttempts, other.RetryAttempts)
	setDuration(&c.RetryBackoff, other.RetryBackoff)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
