package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/jcdickinson/ferrisdoc/internal/tags"
)

type ScanConfig struct {
	GapLimit    int    `mapstructure:"gap_limit"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
	CrateName   string `mapstructure:"crate_name"`
}

type TagsConfig struct {
	BriefPolicy tags.Policy `mapstructure:"brief_policy"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Scan  ScanConfig  `mapstructure:"scan"`
	Tags  TagsConfig  `mapstructure:"tags"`
	Cache CacheConfig `mapstructure:"cache"`
}

// cacheBase returns the base cache directory for ferrisdoc.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/ferrisdoc as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "ferrisdoc")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "ferrisdoc")
	}
	return filepath.Join(os.TempDir(), "ferrisdoc")
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "index.db")
}

// CASDir returns the path to the parse result cache.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "ferrisdoc"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "ferrisdoc"))
	}

	viper.SetDefault("scan.gap_limit", 1)
	viper.SetDefault("scan.concurrency", 0)
	viper.SetDefault("scan.max_file_size", 1000000)
	viper.SetDefault("scan.crate_name", "crate")
	viper.SetDefault("tags.brief_policy", "first")
	viper.SetDefault("cache.enabled", true)

	viper.SetEnvPrefix("FERRISDOC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func stringToBriefPolicyHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(tags.Policy(0)) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return tags.ParsePolicy(data.(string))
		}
		return data, nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToBriefPolicyHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	// env overrides arrive as strings
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Scan.GapLimit < 0 {
		return nil, fmt.Errorf("scan.gap_limit must not be negative, got %d", config.Scan.GapLimit)
	}
	if config.Scan.CrateName == "" {
		config.Scan.CrateName = "crate"
	}

	return &config, nil
}
