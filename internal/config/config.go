// Package config provides configuration loading and validation for the
// engine. It uses koanf to merge environment variables with optional
// file overrides; environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Search provider names.
const (
	SearchProviderITunes  = "itunes"
	SearchProviderSpotify = "spotify"
)

// Config holds all configuration values for the engine.
type Config struct {
	// Server settings
	Env  string `koanf:"env"`
	Addr string `koanf:"addr"`

	// Storage. Everything is optional: without Postgres the document
	// store lives in memory, without Redis snapshots go to disk.
	DatabaseURL string `koanf:"database_url"`
	RedisAddr   string `koanf:"redis_addr"`
	SnapshotDir string `koanf:"snapshot_dir"`

	// Spotify account link
	SpotifyClientID     string `koanf:"spotify_client_id"`
	SpotifyClientSecret string `koanf:"spotify_client_secret"`
	SpotifyRedirectURL  string `koanf:"spotify_redirect_url"`

	// Search
	SearchProvider string        `koanf:"search_provider"`
	SearchCacheTTL time.Duration `koanf:"search_cache_ttl"`

	// Sync
	SyncCooldown time.Duration `koanf:"sync_cooldown"`

	// CORS origins allowed to call the API, comma-separated in the
	// environment variable.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrInvalidSearchProvider      = errors.New(`TUNELOG_SEARCH_PROVIDER must be "itunes" or "spotify"`)
	ErrSpotifyCredentialsRequired = errors.New("SPOTIFY_ID and SPOTIFY_SECRET are required for the spotify search provider")
	ErrNegativeSyncCooldown       = errors.New("TUNELOG_SYNC_COOLDOWN must not be negative")
	ErrNegativeSearchCacheTTL     = errors.New("TUNELOG_SEARCH_CACHE_TTL must not be negative")
	ErrInvalidDuration            = errors.New("must be a valid duration")
)

// Default values for non-secret configuration.
const (
	DefaultEnv            = "development"
	DefaultAddr           = "127.0.0.1:8080"
	DefaultSearchProvider = SearchProviderITunes
	DefaultSyncCooldown   = 15 * time.Minute
	DefaultSearchCacheTTL = 15 * time.Minute
)

// Load reads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). A config file path that cannot be loaded is an error.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("loading config file %s: %w", configFilePath, err)}
		}
	}

	syncCooldown, err := getEnvDurationOrDefault("TUNELOG_SYNC_COOLDOWN", k.String("sync_cooldown"), DefaultSyncCooldown)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	searchCacheTTL, err := getEnvDurationOrDefault("TUNELOG_SEARCH_CACHE_TTL", k.String("search_cache_ttl"), DefaultSearchCacheTTL)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Env:                 getEnvOrDefaultMulti([]string{"TUNELOG_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		Addr:                getEnvOrDefault("TUNELOG_ADDR", k.String("addr"), DefaultAddr),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:           getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		SnapshotDir:         getEnvOrKoanf("TUNELOG_SNAPSHOT_DIR", k, "snapshot_dir"),
		SpotifyClientID:     getEnvOrKoanf("SPOTIFY_ID", k, "spotify_client_id"),
		SpotifyClientSecret: getEnvOrKoanf("SPOTIFY_SECRET", k, "spotify_client_secret"),
		SpotifyRedirectURL:  getEnvOrKoanf("SPOTIFY_REDIRECT_URL", k, "spotify_redirect_url"),
		SearchProvider:      getEnvOrDefault("TUNELOG_SEARCH_PROVIDER", k.String("search_provider"), DefaultSearchProvider),
		SearchCacheTTL:      searchCacheTTL,
		SyncCooldown:        syncCooldown,
		CORSAllowedOrigins:  parseCSV(getEnvOrDefault("TUNELOG_CORS_ALLOWED_ORIGINS", k.String("cors_allowed_origins"), "*")),
	}

	// Spotify requires an exact redirect URL match, so derive the
	// default from the listen address.
	if cfg.SpotifyRedirectURL == "" {
		cfg.SpotifyRedirectURL = "http://" + cfg.Addr + "/auth/callback"
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// Validate checks the configuration for inconsistencies.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	switch c.SearchProvider {
	case SearchProviderITunes, SearchProviderSpotify:
	default:
		errs = append(errs, ErrInvalidSearchProvider)
	}

	if c.SearchProvider == SearchProviderSpotify && !c.SpotifyEnabled() {
		errs = append(errs, ErrSpotifyCredentialsRequired)
	}

	if c.SyncCooldown < 0 {
		errs = append(errs, ErrNegativeSyncCooldown)
	}
	if c.SearchCacheTTL < 0 {
		errs = append(errs, ErrNegativeSearchCacheTTL)
	}

	return errs
}

// SpotifyEnabled reports whether both Spotify credentials are set.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// Production reports whether the engine runs in production mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// getEnvOrKoanf returns the environment variable value if set,
// otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise the koanf value, or the default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in
// order. Returns the first non-empty value found, otherwise the koanf
// value, or the default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvDurationOrDefault returns the environment variable parsed as a
// duration if set, otherwise the koanf value, or the default. Returns
// an error when a set value cannot be parsed.
func getEnvDurationOrDefault(envKey string, koanfVal string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		raw = koanfVal
	}
	if raw == "" {
		return defaultVal, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %w: %q", envKey, ErrInvalidDuration, raw)
	}
	return d, nil
}

// parseCSV splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
