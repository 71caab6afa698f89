package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override file values.
const (
	EnvNotionClientID     = "NOTION_CLIENT_ID"
	EnvNotionClientSecret = "NOTION_CLIENT_SECRET"
	EnvNotionRedirectURI  = "NOTION_REDIRECT_URI"
	EnvNotionToken        = "NOTION_TOKEN"
	EnvNeteaseAPIURL      = "NETEASE_API_URL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Notion   NotionConfig   `toml:"notion"`
	Netease  NeteaseConfig  `toml:"netease"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// NotionConfig contains the public integration credentials and API settings.
type NotionConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RedirectURI       string  `toml:"redirect_uri" validate:"omitempty,url"`
	AccessToken       string  `toml:"access_token"`
	WorkspaceName     string  `toml:"workspace_name"`
	APIURL            string  `toml:"api_url" validate:"required,url"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
	TimeoutSeconds    int     `toml:"timeout_seconds" validate:"gte=0"`
}

// HasClient reports whether both halves of the OAuth client credential are present.
func (n NotionConfig) HasClient() bool {
	return n.ClientID != "" && n.ClientSecret != ""
}

// NeteaseConfig points at the listening history API.
type NeteaseConfig struct {
	APIURL         string `toml:"api_url" validate:"required,url"`
	Cookie         string `toml:"cookie"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

// BreakerConfig tunes the circuit breaker placed in front of the history API in server mode.
type BreakerConfig struct {
	MaxFailures        uint32 `toml:"max_failures" validate:"gte=1"`
	OpenTimeoutSeconds int    `toml:"open_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port" validate:"gte=0,lte=65535"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	RequestsPerMinute int      `toml:"requests_per_minute" validate:"gte=0"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

// SaveConfig encodes config as TOML and writes it to path with owner-only permissions.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnv loads .env style files into the process environment without overriding variables that are already set.
//
// Missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials and endpoints with non-empty environment variables.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	override(&c.Notion.ClientID, EnvNotionClientID)
	override(&c.Notion.ClientSecret, EnvNotionClientSecret)
	override(&c.Notion.RedirectURI, EnvNotionRedirectURI)
	override(&c.Notion.AccessToken, EnvNotionToken)
	override(&c.Netease.APIURL, EnvNeteaseAPIURL)
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := NewValidator().Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveConfig loads the config at path, or the defaults when the file does not exist, then applies .env and
// environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := LoadEnv(".env"); err != nil {
		return nil, err
	}
	config.ApplyEnv()

	return config, config.Validate()
}
