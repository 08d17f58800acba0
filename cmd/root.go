package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/codes"
	"github.com/Norgate-AV/buildk/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "buildk",
	Short:        "Incremental build tool for Kotlin",
	Long:         `Resolve dependencies, order sources and compile Kotlin/JVM projects, skipping work that hasn't changed.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(codes.ExitCode(err))
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().String("kotlin-home", "", "Kotlin installation (defaults to $KOTLIN_HOME or PATH)")
	rootCmd.PersistentFlags().String("cache-root", "", "Directory holding downloaded packages")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable build cache")
	rootCmd.PersistentFlags().IntP("jobs", "j", 0, "Parallel package downloads (0 for one per dependency)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(buildCmd, testCmd, runCmd, releaseCmd, cleanCmd, fetchCmd, depsCmd, treeCmd, configCmd, cacheCmd, indexCmd)
}
