package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	StaticDir      string   `toml:"static_dir"`
	AllowedOrigins []string `toml:"allowed_origins"`
	WriteRate      float64  `toml:"write_rate"`
	WriteBurst     int      `toml:"write_burst"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// AuthConfig controls bearer token verification and the owner policy.
type AuthConfig struct {
	JWTSecret            string `toml:"jwt_secret"`
	TokenTTL             string `toml:"token_ttl"`
	RequireOwnerIdentity bool   `toml:"require_owner_identity"`
}

// ClientConfig is read by the cinerank CLI.
type ClientConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// TTL parses TokenTTL, falling back to 24h when unset.
func (a AuthConfig) TTL() (time.Duration, error) {
	if a.TokenTTL == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(a.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("%w: token_ttl: %v", ErrInvalidConfig, err)
	}
	return d, nil
}

// SigningSecret returns jwt_secret. There is no usable default: an empty
// secret is refused.
func (a AuthConfig) SigningSecret() (string, error) {
	if a.JWTSecret == "" {
		return "", fmt.Errorf("%w: auth.jwt_secret is empty, set it in the config file or CINERANK_JWT_SECRET", ErrInvalidConfig)
	}
	return a.JWTSecret, nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with PORT, DB_PATH, CINERANK_JWT_SECRET,
// CINERANK_URL and CINERANK_TOKEN when they are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CINERANK_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("CINERANK_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv("CINERANK_TOKEN"); v != "" {
		c.Client.Token = v
	}
	return c.Validate()
}

// Validate checks the values every command needs. The server also requires
// [AuthConfig.SigningSecret].
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if _, err := c.Auth.TTL(); err != nil {
		return err
	}
	return nil
}
