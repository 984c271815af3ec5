// Package config loads the settings a dialog replica needs at startup:
// where its local state lives, and how to reach the remote it syncs
// against. It uses viper so the same settings can come from a config file
// or environment variables, layered over built-in defaults (spec.md's
// ambient-stack expansion of SPEC_FULL.md §1.3).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the resolved configuration for a replica process.
type Config struct {
	// StorageDir is where the local filesystem blob store keeps its data.
	StorageDir string `mapstructure:"storage_dir"`

	// RemoteURL is the base URL of the remote blob store endpoint.
	RemoteURL string `mapstructure:"remote_url"`

	// PointerURL is the URL of the remote mutable pointer endpoint.
	PointerURL string `mapstructure:"pointer_url"`

	// BearerToken authenticates requests to RemoteURL/PointerURL, if set.
	BearerToken string `mapstructure:"bearer_token"`

	// SyncInterval is how often the replica polls the remote for changes.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// MaxRetries bounds HTTP retry attempts for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
}

// ErrMissingStorageDir indicates the configuration didn't name a local
// storage directory, which every replica needs.
var ErrMissingStorageDir = errors.New("config: storage_dir is required")

func defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetEnvPrefix("DIALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default must be bound explicitly for Unmarshal to see
	// their environment variables.
	for _, key := range []string{"storage_dir", "remote_url", "pointer_url", "bearer_token"} {
		_ = v.BindEnv(key)
	}
	return v
}

// Load resolves configuration from the built-in defaults, an optional file
// at path (skipped if path is empty or the file doesn't exist), and
// environment variables prefixed DIALOG_, in that order of increasing
// priority.
func Load(path string) (Config, error) {
	v := defaults()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, os.ErrNotExist) {
				return Config{}, errors.Wrap(err, "config: read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	if cfg.StorageDir == "" {
		return Config{}, ErrMissingStorageDir
	}
	return cfg, nil
}
