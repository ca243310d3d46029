package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Auth     AuthConfig     `toml:"auth"`
	Drain    DrainConfig    `toml:"drain"`
}

// DatabaseConfig contains local key/value store settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RemoteConfig contains document backend settings.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
	Project string `toml:"project"`
}

// AuthConfig contains OAuth2 settings for the backend identity service.
type AuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
	UserInfoURL  string `toml:"userinfo_url"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DrainConfig tunes queue replay behavior.
type DrainConfig struct {
	SettleDelayMS int     `toml:"settle_delay_ms"`
	RateLimit     float64 `toml:"rate_limit"`
	SweepFailed   bool    `toml:"sweep_failed"`
}

// SettleDelay returns the configured settle delay as a [time.Duration],
// defaulting to one second.
func (d DrainConfig) SettleDelay() time.Duration {
	if d.SettleDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(d.SettleDelayMS) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
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
