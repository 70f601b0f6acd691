// Package config loads the client profile: which server to talk to and where
// the session token is kept.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	defaultDirName  = ".authsession"
	defaultFileName = "config.yaml"
)

var ErrInvalidProfile = errors.New("invalid profile")

// StoreConfig selects and configures the token store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir,omitempty"`
	Scope       string `yaml:"scope,omitempty"`
	RedisAddr   string `yaml:"redis_addr,omitempty"`
	RedisPrefix string `yaml:"redis_prefix,omitempty"`
}

// Profile is the client configuration file.
type Profile struct {
	ServerURL string        `yaml:"server_url"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	CacheDir  string        `yaml:"cache_dir,omitempty"`
	Store     StoreConfig   `yaml:"store"`
}

// Default returns the profile used when no file exists.
func Default() Profile {
	return Profile{
		ServerURL: "https://localhost:8080",
		Timeout:   30 * time.Second,
		Store: StoreConfig{
			Backend: BackendFile,
		},
	}
}

// DefaultDir returns ~/.authsession.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}

// DefaultPath returns ~/.authsession/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultFileName), nil
}

// Load reads the profile at path on top of Default. A missing file is not an
// error. An empty path loads DefaultPath.
func Load(path string) (Profile, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Profile{}, err
		}
	}

	profile := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return profile, nil
		}
		return Profile{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}

	return profile, nil
}

// Save writes the profile to path with 0600 permissions, atomically.
func Save(path string, profile Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// Validate checks the server URL and store backend.
func (p Profile) Validate() error {
	u, err := url.Parse(p.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server_url %q must be an absolute URL", ErrInvalidProfile, p.ServerURL)
	}

	switch p.Store.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if p.Store.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend requires redis_addr", ErrInvalidProfile)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidProfile, p.Store.Backend)
	}

	return nil
}

// Merge returns p with every non-zero field of overrides applied.
func (p Profile) Merge(overrides Profile) Profile {
	if overrides.ServerURL != "" {
		p.ServerURL = overrides.ServerURL
	}
	if overrides.Timeout > 0 {
		p.Timeout = overrides.Timeout
	}
	if overrides.CacheDir != "" {
		p.CacheDir = overrides.CacheDir
	}
	if overrides.Store.Backend != "" {
		p.Store.Backend = overrides.Store.Backend
	}
	if overrides.Store.Dir != "" {
		p.Store.Dir = overrides.Store.Dir
	}
	if overrides.Store.Scope != "" {
		p.Store.Scope = overrides.Store.Scope
	}
	if overrides.Store.RedisAddr != "" {
		p.Store.RedisAddr = overrides.Store.RedisAddr
	}
	if overrides.Store.RedisPrefix != "" {
		p.Store.RedisPrefix = overrides.Store.RedisPrefix
	}
	return p
}
