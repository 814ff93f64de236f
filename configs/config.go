// Package configs merges environment-driven settings with the on-disk
// profile file. Environment variables use the SPECLI_ prefix; profiles
// persist as JSON under the config directory.
package configs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"specli/internal/adapter/outbound/credstore"
	"specli/internal/domain"
	"specli/internal/usecase"
)

// RequestConfig tunes the HTTP invoker for one profile.
type RequestConfig struct {
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	RetryAttempts  int               `json:"retry_attempts,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
}

// Profile binds a name to everything needed to talk to one API: where its
// schema lives, where requests go, how they authenticate, and how paths
// map to commands.
type Profile struct {
	Name      string                  `json:"name"`
	Spec      string                  `json:"spec"`
	BaseURL   string                  `json:"base_url,omitempty"`
	Auth      credstore.AuthConfig    `json:"auth,omitempty"`
	PathRules *domain.PathRulesConfig `json:"path_rules,omitempty"`
	Request   RequestConfig           `json:"request,omitempty"`
}

// Rules returns the profile's path rules, or the defaults.
func (p Profile) Rules() domain.PathRulesConfig {
	if p.PathRules != nil {
		return *p.PathRules
	}
	return domain.DefaultPathRules()
}

type profileFile struct {
	DefaultProfile string    `json:"default_profile,omitempty"`
	Profiles       []Profile `json:"profiles"`
}

// Config holds the merged application configuration. Environment variables
// with the SPECLI_ prefix override defaults; the profile file supplies the
// per-API entries.
type Config struct {
	// ConfigDir is where profiles, credentials, and the response cache
	// live. Empty means ~/.config/specli.
	ConfigDir string `envconfig:"CONFIG_DIR"`

	Profile           string        `envconfig:"PROFILE"`
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	CacheTTL          time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`

	DefaultProfile string
	Profiles       []Profile
}

// ParsedLogLevel returns the slog.Level for the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// ProfilesPath is the JSON file holding profile definitions.
func (c *Config) ProfilesPath() string {
	return filepath.Join(c.ConfigDir, "profiles.json")
}

// CredentialsPath is the JSON file backing the credential store.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.ConfigDir, "credentials.json")
}

// CacheDir is where the response cache keeps its entries.
func (c *Config) CacheDir() string {
	return filepath.Join(c.ConfigDir, "cache")
}

// FindProfile returns the named profile, or the default profile when name
// is empty, or the only profile when exactly one exists.
func (c *Config) FindProfile(name string) (Profile, error) {
	if name == "" {
		name = c.Profile
	}
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" && len(c.Profiles) == 1 {
		return c.Profiles[0], nil
	}
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	if name == "" {
		return Profile{}, fmt.Errorf("%w: no profile selected and no default configured", usecase.ErrProfileNotFound)
	}
	return Profile{}, fmt.Errorf("%w: %s", usecase.ErrProfileNotFound, name)
}

// ProfileNames returns all configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Load reads environment variables, resolves the config directory, and
// loads the profile file when it exists. A missing profile file is not an
// error; `specli init` creates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("specli", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment variables: %w", err)
	}

	if cfg.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.ConfigDir = filepath.Join(home, ".config", "specli")
	}

	data, err := os.ReadFile(cfg.ProfilesPath())
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}

	var file profileFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing profile file %s: %w", cfg.ProfilesPath(), err)
	}
	cfg.DefaultProfile = file.DefaultProfile
	cfg.Profiles = file.Profiles
	return &cfg, nil
}

// SaveProfiles writes the profile list back to disk, creating the config
// directory when needed.
func (c *Config) SaveProfiles() error {
	if err := os.MkdirAll(c.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(profileFile{
		DefaultProfile: c.DefaultProfile,
		Profiles:       c.Profiles,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	return os.WriteFile(c.ProfilesPath(), append(data, '\n'), 0o644)
}

// UpsertProfile adds a profile or replaces the one with the same name.
func (c *Config) UpsertProfile(p Profile) {
	for i, existing := range c.Profiles {
		if existing.Name == p.Name {
			c.Profiles[i] = p
			return
		}
	}
	c.Profiles = append(c.Profiles, p)
}

// RemoveProfile deletes the named profile.
func (c *Config) RemoveProfile(name string) error {
	for i, p := range c.Profiles {
		if p.Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			if c.DefaultProfile == name {
				c.DefaultProfile = ""
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", usecase.ErrProfileNotFound, name)
}
