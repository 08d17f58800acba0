package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/build"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Build and run the program",
	Long:         `Compile the sources and run the main class of the configured main file.`,
	RunE:         runRun,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	outcomes, err := s.Run(cmd.Context())
	report(cmd, outcomes, err, build.StepRun)

	return err
}
