package shared

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	EnvLogin    = "VKM_LOGIN"
	EnvPassword = "VKM_PASSWORD"

	MaxWorkers = 8
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	VK          VKConfig          `toml:"vk"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Download    DownloadConfig    `toml:"download"`
}

// VKConfig contains the application registration and endpoint settings.
type VKConfig struct {
	AppID          string   `toml:"app_id"`
	Scope          []string `toml:"scope"`
	APIVersion     string   `toml:"api_version"`
	APIURL         string   `toml:"api_url"`
	OAuthURL       string   `toml:"oauth_url"`
	RedirectURI    string   `toml:"redirect_uri"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	UserAgent      string   `toml:"user_agent"`
}

// Timeout returns the per-request timeout, defaulting to 30 seconds.
func (c VKConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CredentialsConfig holds the VK login and where to find the password.
//
// The password itself is never stored in the config file.
type CredentialsConfig struct {
	Login string `toml:"login"`
	File  string `toml:"file"`
	Token string `toml:"token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DownloadConfig contains defaults for the download command.
type DownloadConfig struct {
	Destination string  `toml:"destination"`
	Workers     int     `toml:"workers"`
	RateLimit   float64 `toml:"rate_limit"`
	SlugNames   bool    `toml:"slug_names"`
}

// Validate checks the values a login or API call cannot work without.
func (c *Config) Validate() error {
	switch {
	case c.VK.AppID == "":
		return fmt.Errorf("%w: vk.app_id is required", ErrInvalidConfig)
	case c.VK.APIURL == "":
		return fmt.Errorf("%w: vk.api_url is required", ErrInvalidConfig)
	case c.VK.OAuthURL == "":
		return fmt.Errorf("%w: vk.oauth_url is required", ErrInvalidConfig)
	case c.VK.RedirectURI == "":
		return fmt.Errorf("%w: vk.redirect_uri is required", ErrInvalidConfig)
	case c.Download.Workers < 0 || c.Download.Workers > MaxWorkers:
		return fmt.Errorf("%w: download.workers must be between 1 and %d", ErrInvalidConfig, MaxWorkers)
	}
	return nil
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
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
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

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ReadCredentialsFile reads a login from the first line and a password from the second line of path.
func ReadCredentialsFile(path string) (login, password string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	if len(lines) < 2 || lines[0] == "" || lines[1] == "" {
		return "", "", fmt.Errorf("%w: %s must contain a login line and a password line", ErrInvalidCredentials, path)
	}
	return lines[0], lines[1], nil
}

// EnvCredentials returns the login and password from the environment, either may be empty.
func EnvCredentials() (login, password string) {
	return os.Getenv(EnvLogin), os.Getenv(EnvPassword)
}
