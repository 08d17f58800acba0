package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:          "tree",
	Short:        "Show the compile order",
	Long:         `Print the source and test files in the order they are compiled.`,
	RunE:         runTree,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runTree(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	src, test, err := s.Tree()
	if err != nil {
		return err
	}

	for _, group := range []struct {
		name  string
		files []string
	}{{"src", src}, {"test", test}} {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d %s)\n", group.name, len(group.files), plural(len(group.files), "file"))

		for i, f := range group.files {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, relative(s.Manifest.Dir, f))
		}
	}

	return nil
}
