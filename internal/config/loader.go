package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, BUILDK_CACHE_ROOT for cache_root
const EnvPrefix = "BUILDK"

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration for a command run from dir. Flags
// override the environment, which overrides the local config, which
// overrides the global one.
func (l *Loader) LoadForBuild(cmd *cobra.Command, dir string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(dir)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("kotlin_home", "")
	viper.SetDefault("java_home", "")
	viper.SetDefault("cache_root", DefaultCacheRoot())
	viper.SetDefault("cache.path", "")
	viper.SetDefault("cache.failures", DefaultCacheFailures)
	viper.SetDefault("no_cache", DefaultNoCache)
	viper.SetDefault("jobs", DefaultJobs)
	viper.SetDefault("log.level", DefaultLogLevel)
	viper.SetDefault("log.format", DefaultLogFormat)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	globalDir := GlobalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range extensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the closest .buildk.* above dir over the global config
func (l *Loader) loadLocalConfig(dir string) {
	if dir == "" {
		return
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(abs)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnv enables BUILDK_* overrides, nested keys use "_" for "."
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("kotlin_home", cmd.Flags().Lookup("kotlin-home"))
	_ = viper.BindPFlag("cache_root", cmd.Flags().Lookup("cache-root"))
	_ = viper.BindPFlag("no_cache", cmd.Flags().Lookup("no-cache"))
	_ = viper.BindPFlag("jobs", cmd.Flags().Lookup("jobs"))
	_ = viper.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", cmd.Flags().Lookup("log-format"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
}
