package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/build"
	"github.com/Norgate-AV/buildk/internal/version"
)

var configCmd = &cobra.Command{
	Use:          "config",
	Short:        "Show the effective configuration",
	Long:         `Print the configuration after merging global and local config files, environment and flags.`,
	RunE:         runConfig,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runConfig(cmd *cobra.Command, args []string) error {
	m, cfg, err := loadProject(cmd)
	if err != nil {
		return err
	}

	jobs := "per dependency"
	if cfg.Jobs > 0 {
		jobs = strconv.Itoa(cfg.Jobs)
	}

	rows := [][2]string{
		{"version", version.Version},
		{"manifest", m.Path},
		{"kotlin_home", valueOr(cfg.KotlinHome, m.KotlinHome)},
		{"java_home", cfg.JavaHome},
		{"cache_root", cfg.CacheRoot},
		{"cache.path", build.CachePath(m, cfg)},
		{"cache.failures", string(cfg.CacheFailures)},
		{"no_cache", strconv.FormatBool(cfg.NoCache)},
		{"jobs", jobs},
		{"log.level", cfg.LogLevel},
		{"log.format", cfg.LogFormat},
	}

	for _, row := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s%s\n", row[0], valueOr(row[1], "-"))
	}

	return nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
