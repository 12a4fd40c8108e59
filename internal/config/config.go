package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "LIVECLASS_"

// Supported storage backends
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	GrantStoreMemory = "memory"
	GrantStoreRedis  = "redis"
)

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	Database  *DatabaseConfig  `json:"database" envPrefix:"DATABASE_"`
	HTTP      *HTTPConfig      `json:"http" envPrefix:"HTTP_"`
	WebSocket *WebSocketConfig `json:"websocket" envPrefix:"WEBSOCKET_"`
	Auth      *AuthConfig      `json:"auth" envPrefix:"AUTH_"`
	Access    *AccessConfig    `json:"access" envPrefix:"ACCESS_"`
	Session   *SessionConfig   `json:"session" envPrefix:"SESSION_"`
}

// FUNCTIONAL DISCOVERY: SQLite is the default store; Postgres is selected by driver
type DatabaseConfig struct {
	Driver         string        `json:"driver" env:"DRIVER"`
	Path           string        `json:"path" env:"PATH"`
	URL            string        `json:"url" env:"URL"`
	Timeout        time.Duration `json:"timeout" env:"TIMEOUT"`
	MaxConnections int           `json:"max_connections" env:"MAX_CONNECTIONS"`
}

type HTTPConfig struct {
	Host            string        `json:"host" env:"HOST"`
	Port            int           `json:"port" env:"PORT"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// FUNCTIONAL DISCOVERY: WebSocket configuration optimized for classroom scenarios
type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval" env:"PING_INTERVAL"`
	ReadTimeout    time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	MaxMessageSize int64         `json:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

// AuthConfig holds the shared secret used to verify caller tokens
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" env:"JWT_SECRET"`
}

type AccessConfig struct {
	GrantTTL        time.Duration `json:"grant_ttl" env:"GRANT_TTL"`
	GrantStore      string        `json:"grant_store" env:"GRANT_STORE"`
	RedisAddr       string        `json:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword   string        `json:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB         int           `json:"redis_db" env:"REDIS_DB"`
	AttemptLimit    int           `json:"attempt_limit" env:"ATTEMPT_LIMIT"`
	AttemptWindow   time.Duration `json:"attempt_window" env:"ATTEMPT_WINDOW"`
	JanitorInterval time.Duration `json:"janitor_interval" env:"JANITOR_INTERVAL"`
}

type SessionConfig struct {
	PersistTimeout time.Duration `json:"persist_timeout" env:"PERSIST_TIMEOUT"`
}

// FUNCTIONAL DISCOVERY: Production-ready defaults based on classroom requirements
// Database on local filesystem, HTTP on standard port, WebSocket with 30s heartbeat.
// There is no default JWT secret.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Driver:         DriverSQLite,
			Path:           "./data/liveclass.db",
			Timeout:        30 * time.Second,
			MaxConnections: 10,
		},
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxMessageSize: 64 * 1024,
		},
		Auth: &AuthConfig{},
		Access: &AccessConfig{
			GrantTTL:        24 * time.Hour,
			GrantStore:      GrantStoreMemory,
			AttemptLimit:    20,
			AttemptWindow:   time.Minute,
			JanitorInterval: 5 * time.Minute,
		},
		Session: &SessionConfig{
			PersistTimeout: 10 * time.Second,
		},
	}
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
func (c *Config) Validate() error {
	if c.Database == nil || c.HTTP == nil || c.WebSocket == nil || c.Auth == nil || c.Access == nil || c.Session == nil {
		return fmt.Errorf("all configuration sections are required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}

	// port 0 binds an ephemeral port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket ping interval and read timeout must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return fmt.Errorf("WebSocket ping interval must be shorter than the read timeout")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket message size must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	switch c.Access.GrantStore {
	case GrantStoreMemory:
	case GrantStoreRedis:
		if c.Access.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis grant store")
		}
	default:
		return fmt.Errorf("unknown grant store %q", c.Access.GrantStore)
	}
	if c.Access.GrantTTL <= 0 || c.Access.AttemptWindow <= 0 || c.Access.JanitorInterval <= 0 {
		return fmt.Errorf("access durations must be positive")
	}
	if c.Access.AttemptLimit <= 0 {
		return fmt.Errorf("access attempt limit must be positive")
	}

	if c.Session.PersistTimeout <= 0 {
		return fmt.Errorf("session persist timeout must be positive")
	}

	return nil
}

// Address returns host:port for the HTTP listener
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadFromEnv overlays LIVECLASS_* environment variables on the defaults
// FUNCTIONAL DISCOVERY: Unset variables keep the default value
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ConfigFile represents the JSON structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings;
// pointer fields distinguish "absent" from zero
type ConfigFile struct {
	Database *struct {
		Driver         string `json:"driver"`
		Path           string `json:"path"`
		URL            string `json:"url"`
		Timeout        string `json:"timeout"`
		MaxConnections int    `json:"max_connections"`
	} `json:"database"`
	HTTP *struct {
		Host            string `json:"host"`
		Port            int    `json:"port"`
		ReadTimeout     string `json:"read_timeout"`
		WriteTimeout    string `json:"write_timeout"`
		ShutdownTimeout string `json:"shutdown_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval   string `json:"ping_interval"`
		ReadTimeout    string `json:"read_timeout"`
		MaxMessageSize int64  `json:"max_message_size"`
	} `json:"websocket"`
	Auth *struct {
		JWTSecret string `json:"jwt_secret"`
	} `json:"auth"`
	Access *struct {
		GrantTTL        string `json:"grant_ttl"`
		GrantStore      string `json:"grant_store"`
		RedisAddr       string `json:"redis_addr"`
		RedisPassword   string `json:"redis_password"`
		RedisDB         int    `json:"redis_db"`
		AttemptLimit    int    `json:"attempt_limit"`
		AttemptWindow   string `json:"attempt_window"`
		JanitorInterval string `json:"janitor_interval"`
	} `json:"access"`
	Session *struct {
		PersistTimeout string `json:"persist_timeout"`
	} `json:"session"`
}

// LoadFromFile reads a JSON file over the defaults and validates the result
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment > defaults
func LoadConfigWithPrecedence(path string) (*Config, error) {
	cfg, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFile overlays the non-empty values of a JSON config file on cfg
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var d durations
	if f := file.Database; f != nil {
		setString(&cfg.Database.Driver, f.Driver)
		setString(&cfg.Database.Path, f.Path)
		setString(&cfg.Database.URL, f.URL)
		setInt(&cfg.Database.MaxConnections, f.MaxConnections)
		d.set(&cfg.Database.Timeout, "database.timeout", f.Timeout)
	}
	if f := file.HTTP; f != nil {
		setString(&cfg.HTTP.Host, f.Host)
		setInt(&cfg.HTTP.Port, f.Port)
		d.set(&cfg.HTTP.ReadTimeout, "http.read_timeout", f.ReadTimeout)
		d.set(&cfg.HTTP.WriteTimeout, "http.write_timeout", f.WriteTimeout)
		d.set(&cfg.HTTP.ShutdownTimeout, "http.shutdown_timeout", f.ShutdownTimeout)
	}
	if f := file.WebSocket; f != nil {
		d.set(&cfg.WebSocket.PingInterval, "websocket.ping_interval", f.PingInterval)
		d.set(&cfg.WebSocket.ReadTimeout, "websocket.read_timeout", f.ReadTimeout)
		if f.MaxMessageSize > 0 {
			cfg.WebSocket.MaxMessageSize = f.MaxMessageSize
		}
	}
	if f := file.Auth; f != nil {
		setString(&cfg.Auth.JWTSecret, f.JWTSecret)
	}
	if f := file.Access; f != nil {
		d.set(&cfg.Access.GrantTTL, "access.grant_ttl", f.GrantTTL)
		setString(&cfg.Access.GrantStore, f.GrantStore)
		setString(&cfg.Access.RedisAddr, f.RedisAddr)
		setString(&cfg.Access.RedisPassword, f.RedisPassword)
		setInt(&cfg.Access.RedisDB, f.RedisDB)
		setInt(&cfg.Access.AttemptLimit, f.AttemptLimit)
		d.set(&cfg.Access.AttemptWindow, "access.attempt_window", f.AttemptWindow)
		d.set(&cfg.Access.JanitorInterval, "access.janitor_interval", f.JanitorInterval)
	}
	if f := file.Session; f != nil {
		d.set(&cfg.Session.PersistTimeout, "session.persist_timeout", f.PersistTimeout)
	}

	if d.err != nil {
		return fmt.Errorf("config file %s: %w", path, d.err)
	}
	return nil
}

// durations parses duration strings and keeps the first failure
type durations struct {
	err error
}

func (d *durations) set(dst *time.Duration, name, value string) {
	if value == "" || d.err != nil {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		d.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	*dst = parsed
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}

// Resolve applies the same precedence as LoadConfigWithPrecedence but skips
// validation; offline commands use it without a JWT secret
func Resolve(path string) (*Config, error) {
	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
