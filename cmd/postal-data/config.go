package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	postal "github.com/riordan/pypostal"
)

// config is the binary's configuration, loaded from a YAML file with
// environment overrides (POSTAL_MANIFEST_URL, POSTAL_CACHE_DIR, ...).
type config struct {
	ManifestURL string        `mapstructure:"manifest_url"`
	CacheDir    string        `mapstructure:"cache_dir"`
	Logging     loggingConfig `mapstructure:"logging"`
}

type loggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// loadConfig reads the configuration file at path, or the first of
// ~/.config/postal-data/config.yaml and ./postal-data.yaml when path is
// empty. A missing file is not an error; defaults and environment
// variables still apply.
func loadConfig(path string) (*config, error) {
	v := viper.New()

	v.SetDefault("manifest_url", postal.DefaultManifestURL)
	v.SetDefault("cache_dir", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetEnvPrefix("POSTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "postal-data"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
