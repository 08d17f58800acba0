package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/build"
)

var testCmd = &cobra.Command{
	Use:          "test",
	Short:        "Build and run the tests",
	Long:         `Compile sources and tests, then run every test through the JUnit console launcher.`,
	RunE:         runTest,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runTest(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	outcomes, err := s.Test(cmd.Context())
	report(cmd, outcomes, err, build.StepJUnit)

	return err
}

// report prints every outcome, the last one failing when err is set. The
// output of the step named show is printed as is.
func report(cmd *cobra.Command, outcomes []build.Outcome, err error, show string) {
	for i, o := range outcomes {
		var stepErr error
		if i == len(outcomes)-1 {
			stepErr = err
		}

		printOutcome(cmd.OutOrStdout(), o, stepErr)

		if o.Step == show && stepErr == nil {
			fmt.Fprint(cmd.OutOrStdout(), o.Stdout)
		}
	}
}
