package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/cache"
)

var fetchCmd = &cobra.Command{
	Use:          "fetch",
	Short:        "Download dependencies",
	Long:         `Download every declared dependency and its transitive dependencies into the package cache.`,
	RunE:         runFetch,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runFetch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	for _, pkg := range report.Downloaded {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", label(cache.Executed, nil), pkg)
	}

	for _, failure := range report.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", label(cache.Executed, failure), failure)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d downloaded, %d cached, %d failed\n", len(report.Downloaded), len(report.Cached), len(report.Failed))

	return report.Err()
}
