package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:          "release",
	Short:        "Package a runnable jar",
	Long:         `Compile the sources together with the Kotlin runtime into a single jar.`,
	RunE:         runRelease,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runRelease(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	outcome, err := s.Release(cmd.Context())
	printOutcome(cmd.OutOrStdout(), outcome, err)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), relative(s.Manifest.Dir, s.ReleasePath()))

	return nil
}

