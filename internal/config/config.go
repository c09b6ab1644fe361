package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dbconfig "strangers/pkg/database"
)

// Config holds every runtime setting of the server
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Database  *DatabaseConfig  `json:"database"`
	Matching  *MatchingConfig  `json:"matching"`
	Logging   *LoggingConfig   `json:"logging"`
}

type HTTPConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	AllowedOrigin string        `json:"allowed_origin"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	BufferSize     int           `json:"buffer_size"`
	MaxMessageSize int64         `json:"max_message_size"`
}

// DatabaseConfig configures the match log. The default path is a shared
// in-memory database, so nothing is written to disk unless a file is given.
type DatabaseConfig struct {
	Enabled     bool          `json:"enabled"`
	Path        string        `json:"path"`
	Timeout     time.Duration `json:"timeout"`
	RetryDelay  time.Duration `json:"retry_delay"`
	WriteBuffer int           `json:"write_buffer"`
}

type MatchingConfig struct {
	// RateLimitPerMinute caps inbound events per connection; 0 disables
	RateLimitPerMinute int `json:"rate_limit_per_minute"`
	// VerifyInvariants checks the session state after every event
	VerifyInvariants bool `json:"verify_invariants"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:          "0.0.0.0",
			Port:          5000,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			AllowedOrigin: "*",
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     100,
			MaxMessageSize: 64 * 1024,
		},
		Database: &DatabaseConfig{
			Enabled:     true,
			Path:        dbconfig.DefaultPath,
			Timeout:     30 * time.Second,
			RetryDelay:  5 * time.Second,
			WriteBuffer: 256,
		},
		Matching: &MatchingConfig{
			RateLimitPerMinute: 600,
		},
		Logging: &LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.AllowedOrigin == "" {
		return fmt.Errorf("allowed origin cannot be empty, use * to allow any")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Enabled {
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
		if c.Database.Timeout <= 0 {
			return fmt.Errorf("database timeout must be positive")
		}
		if c.Database.RetryDelay < 0 {
			return fmt.Errorf("database retry delay cannot be negative")
		}
		if c.Database.WriteBuffer <= 0 {
			return fmt.Errorf("database write buffer must be positive")
		}
	}

	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if c.Matching.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	if c.Logging == nil {
		return fmt.Errorf("logging configuration is required")
	}

	return nil
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// DatabaseSettings converts the match log settings for the database layer
func (c *Config) DatabaseSettings() *dbconfig.Config {
	settings := dbconfig.DefaultConfig()
	settings.DatabasePath = c.Database.Path
	settings.RetryDelay = c.Database.RetryDelay
	settings.WriteBuffer = c.Database.WriteBuffer
	settings.WriteTimeout = c.Database.Timeout
	return settings
}

// LoadFromEnv applies environment variables over the defaults
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config)
	return config
}

func applyEnv(config *Config) {
	// PORT is what hosting platforms set; the prefixed variable wins
	envInt("PORT", &config.HTTP.Port)
	envInt("STRANGERS_HTTP_PORT", &config.HTTP.Port)
	envString("STRANGERS_HTTP_HOST", &config.HTTP.Host)
	envDuration("STRANGERS_HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	envDuration("STRANGERS_HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)
	envString("CORS_ORIGIN", &config.HTTP.AllowedOrigin)
	envString("STRANGERS_ALLOWED_ORIGIN", &config.HTTP.AllowedOrigin)

	envDuration("STRANGERS_WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	envDuration("STRANGERS_WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	envDuration("STRANGERS_WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	envInt("STRANGERS_WEBSOCKET_BUFFER_SIZE", &config.WebSocket.BufferSize)
	if v := os.Getenv("STRANGERS_WEBSOCKET_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.WebSocket.MaxMessageSize = size
		}
	}

	envBool("STRANGERS_DATABASE_ENABLED", &config.Database.Enabled)
	envString("STRANGERS_DATABASE_PATH", &config.Database.Path)
	envDuration("STRANGERS_DATABASE_TIMEOUT", &config.Database.Timeout)
	envDuration("STRANGERS_DATABASE_RETRY_DELAY", &config.Database.RetryDelay)

	envInt("STRANGERS_RATE_LIMIT_PER_MINUTE", &config.Matching.RateLimitPerMinute)
	envBool("STRANGERS_VERIFY_INVARIANTS", &config.Matching.VerifyInvariants)

	envString("LOG_LEVEL", &config.Logging.Level)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// ConfigFile is the on-disk shape of the configuration. Durations are
// strings such as "30s"; unset fields keep their current value.
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http" yaml:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket" yaml:"websocket"`
	Database  *DatabaseConfigFile  `json:"database" yaml:"database"`
	Matching  *MatchingConfigFile  `json:"matching" yaml:"matching"`
	Logging   *LoggingConfigFile   `json:"logging" yaml:"logging"`
}

type HTTPConfigFile struct {
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	ReadTimeout   string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  string `json:"write_timeout" yaml:"write_timeout"`
	AllowedOrigin string `json:"allowed_origin" yaml:"allowed_origin"`
}

type WebSocketConfigFile struct {
	PingInterval   string `json:"ping_interval" yaml:"ping_interval"`
	ReadTimeout    string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   string `json:"write_timeout" yaml:"write_timeout"`
	BufferSize     int    `json:"buffer_size" yaml:"buffer_size"`
	MaxMessageSize int64  `json:"max_message_size" yaml:"max_message_size"`
}

type DatabaseConfigFile struct {
	Enabled     *bool  `json:"enabled" yaml:"enabled"`
	Path        string `json:"path" yaml:"path"`
	Timeout     string `json:"timeout" yaml:"timeout"`
	RetryDelay  string `json:"retry_delay" yaml:"retry_delay"`
	WriteBuffer int    `json:"write_buffer" yaml:"write_buffer"`
}

type MatchingConfigFile struct {
	RateLimitPerMinute *int  `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	VerifyInvariants   *bool `json:"verify_invariants" yaml:"verify_invariants"`
}

type LoggingConfigFile struct {
	Level string `json:"level" yaml:"level"`
}

// ParseFile decodes a config file, choosing YAML for .yaml and .yml and
// JSON otherwise
func ParseFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &file, nil
}

// LoadFromFile applies a config file over the defaults
func LoadFromFile(path string) (*Config, error) {
	file, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := file.apply(config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// LoadConfigWithPrecedence resolves file > environment > defaults. An empty
// path skips the file.
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := LoadFromEnv()

	if path != "" {
		file, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		if err := file.apply(config); err != nil {
			return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (f *ConfigFile) apply(config *Config) error {
	if h := f.HTTP; h != nil {
		if h.Host != "" {
			config.HTTP.Host = h.Host
		}
		if h.Port > 0 {
			config.HTTP.Port = h.Port
		}
		if h.AllowedOrigin != "" {
			config.HTTP.AllowedOrigin = h.AllowedOrigin
		}
		if err := parseDuration("http.read_timeout", h.ReadTimeout, &config.HTTP.ReadTimeout); err != nil {
			return err
		}
		if err := parseDuration("http.write_timeout", h.WriteTimeout, &config.HTTP.WriteTimeout); err != nil {
			return err
		}
	}

	if ws := f.WebSocket; ws != nil {
		if ws.BufferSize > 0 {
			config.WebSocket.BufferSize = ws.BufferSize
		}
		if ws.MaxMessageSize > 0 {
			config.WebSocket.MaxMessageSize = ws.MaxMessageSize
		}
		if err := parseDuration("websocket.ping_interval", ws.PingInterval, &config.WebSocket.PingInterval); err != nil {
			return err
		}
		if err := parseDuration("websocket.read_timeout", ws.ReadTimeout, &config.WebSocket.ReadTimeout); err != nil {
			return err
		}
		if err := parseDuration("websocket.write_timeout", ws.WriteTimeout, &config.WebSocket.WriteTimeout); err != nil {
			return err
		}
	}

	if db := f.Database; db != nil {
		if db.Enabled != nil {
			config.Database.Enabled = *db.Enabled
		}
		if db.Path != "" {
			config.Database.Path = db.Path
		}
		if db.WriteBuffer > 0 {
			config.Database.WriteBuffer = db.WriteBuffer
		}
		if err := parseDuration("database.timeout", db.Timeout, &config.Database.Timeout); err != nil {
			return err
		}
		if err := parseDuration("database.retry_delay", db.RetryDelay, &config.Database.RetryDelay); err != nil {
			return err
		}
	}

	if m := f.Matching; m != nil {
		if m.RateLimitPerMinute != nil {
			config.Matching.RateLimitPerMinute = *m.RateLimitPerMinute
		}
		if m.VerifyInvariants != nil {
			config.Matching.VerifyInvariants = *m.VerifyInvariants
		}
	}

	if l := f.Logging; l != nil && l.Level != "" {
		config.Logging.Level = l.Level
	}

	return nil
}

func parseDuration(field, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
