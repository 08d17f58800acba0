package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/buildk/internal/cache"
	"github.com/Norgate-AV/buildk/internal/logging"
)

// Default configuration values
const (
	DefaultCacheDir      = ".buildk/cache"
	DefaultCacheFailures = string(cache.KeepFailures)
	DefaultNoCache       = false
	DefaultJobs          = 0
	DefaultLogLevel      = "info"
	DefaultLogFormat     = logging.FormatText
	DefaultVerbose       = false
)

// Holds the configuration options for buildk
type Config struct {
	// Kotlin installation, empty to use $KOTLIN_HOME or PATH
	KotlinHome string

	// JDK installation, empty to use $JAVA_HOME or PATH
	JavaHome string

	// Root of the downloaded package cache
	CacheRoot string

	// Build cache file, empty for cache.json in the project output directory
	CachePath string

	// Whether failed invocations are kept in the build cache
	CacheFailures cache.FailurePolicy

	// Run every tool invocation, ignoring and not writing the build cache
	NoCache bool

	// Maximum parallel package fetches, 0 for one per dependency
	Jobs int

	LogLevel  string
	LogFormat string

	// Enable verbose output
	Verbose bool
}

// DefaultCacheRoot returns ~/.buildk/cache
func DefaultCacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultCacheDir
	}

	return filepath.Join(home, DefaultCacheDir)
}

func Load() (*Config, error) {
	cfg := &Config{
		KotlinHome:    viper.GetString("kotlin_home"),
		JavaHome:      viper.GetString("java_home"),
		CacheRoot:     viper.GetString("cache_root"),
		CachePath:     viper.GetString("cache.path"),
		CacheFailures: cache.FailurePolicy(viper.GetString("cache.failures")),
		NoCache:       viper.GetBool("no_cache"),
		Jobs:          viper.GetInt("jobs"),
		LogLevel:      viper.GetString("log.level"),
		LogFormat:     viper.GetString("log.format"),
		Verbose:       viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = DefaultCacheRoot()
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	abs, err := filepath.Abs(c.CacheRoot)
	if err != nil {
		return fmt.Errorf("invalid cache root: %v", err)
	}

	c.CacheRoot = abs

	if c.CachePath != "" {
		abs, err := filepath.Abs(c.CachePath)
		if err != nil {
			return fmt.Errorf("invalid cache path: %v", err)
		}

		c.CachePath = abs
	}

	policy, err := cache.ParseFailurePolicy(string(c.CacheFailures))
	if err != nil {
		return err
	}

	c.CacheFailures = policy

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("invalid log format %q, expected %q or %q", c.LogFormat, logging.FormatText, logging.FormatJSON)
	}

	if c.Jobs < 0 {
		return fmt.Errorf("invalid jobs: %d", c.Jobs)
	}

	return nil
}
