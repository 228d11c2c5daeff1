// Package config loads uploader settings from the environment (and an
// optional .env file) layered over the saved credentials file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ekoslightbucket/lightbucket-uploader/pkg/lightbucket"
)

// CredentialsFileName is the file written under the user config directory
const CredentialsFileName = "ekoslightbucket.yaml"

// ErrMissingCredentials is returned when no user or API key is configured
var ErrMissingCredentials = errors.New("lightbucket user and API key are required")

// Config holds everything the uploader needs at runtime
type Config struct {
	BaseURL string
	User    string
	APIKey  string

	ThumbnailWidth   int
	ThumbnailQuality int

	// HTTPAddr is the webhook/status listen address; empty disables it
	HTTPAddr string

	// UploadTimeout bounds one upload request; zero means no timeout
	UploadTimeout time.Duration

	// LedgerDatabaseURL enables the upload ledger when set
	LedgerDatabaseURL string

	// PreviewArchiveDir enables the preview archive when set
	PreviewArchiveDir string

	CredentialsFile string
}

// Credentials is the on-disk credentials file
type Credentials struct {
	User    string `yaml:"user"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		BaseURL:          lightbucket.DefaultBaseURL,
		ThumbnailWidth:   300,
		ThumbnailQuality: 70,
		HTTPAddr:         ":8090",
	}
}

// DefaultCredentialsFile returns the credentials path in the user config dir
func DefaultCredentialsFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, CredentialsFileName), nil
}

// Load reads .env (if present), the credentials file and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment
func FromEnv() (*Config, error) {
	cfg := Default()

	cfg.CredentialsFile = os.Getenv("LIGHTBUCKET_CREDENTIALS_FILE")
	if cfg.CredentialsFile == "" {
		path, err := DefaultCredentialsFile()
		if err == nil {
			cfg.CredentialsFile = path
		}
	}

	if cfg.CredentialsFile != "" {
		creds, found, err := LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		if found {
			cfg.User = creds.User
			cfg.APIKey = creds.APIKey
			if creds.BaseURL != "" {
				cfg.BaseURL = creds.BaseURL
			}
		}
	}

	if v := os.Getenv("LIGHTBUCKET_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("LIGHTBUCKET_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("LIGHTBUCKET_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v, ok := os.LookupEnv("UPLOADER_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	cfg.LedgerDatabaseURL = os.Getenv("LEDGER_DATABASE_URL")
	cfg.PreviewArchiveDir = os.Getenv("PREVIEW_ARCHIVE_DIR")

	var err error
	if cfg.ThumbnailWidth, err = intEnv("THUMBNAIL_WIDTH", cfg.ThumbnailWidth); err != nil {
		return nil, err
	}
	if cfg.ThumbnailQuality, err = intEnv("THUMBNAIL_QUALITY", cfg.ThumbnailQuality); err != nil {
		return nil, err
	}
	if v := os.Getenv("UPLOAD_TIMEOUT"); v != "" {
		if cfg.UploadTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid UPLOAD_TIMEOUT %q: %w", v, err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration can be used for uploads
func (c *Config) Validate() error {
	if c.User == "" || c.APIKey == "" {
		return ErrMissingCredentials
	}
	if c.BaseURL == "" {
		return fmt.Errorf("LIGHTBUCKET_URL must not be empty")
	}
	if c.ThumbnailWidth <= 0 {
		return fmt.Errorf("invalid thumbnail width: %d", c.ThumbnailWidth)
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return fmt.Errorf("invalid thumbnail quality: %d (must be 1-100)", c.ThumbnailQuality)
	}
	if c.UploadTimeout < 0 {
		return fmt.Errorf("invalid upload timeout: %s", c.UploadTimeout)
	}
	return nil
}

// LoadCredentials reads the credentials file. found is false when the file
// does not exist.
func LoadCredentials(path string) (creds Credentials, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	return creds, true, nil
}

// SaveCredentials writes the credentials file readable by the owner only
func SaveCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
