package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/build"
)

var cleanCmd = &cobra.Command{
	Use:          "clean",
	Short:        "Remove build output",
	Long:         `Remove the output directory and the build cache.`,
	RunE:         runClean,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runClean(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	err = s.Clean()
	printOutcome(cmd.OutOrStdout(), build.Outcome{Step: "clean"}, err)

	return err
}
