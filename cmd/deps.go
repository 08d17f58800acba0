package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/cache"
)

var depsCmd = &cobra.Command{
	Use:          "deps",
	Short:        "List dependencies",
	Long:         `List the project dependencies, each followed by its transitives indented by depth, and whether each package is in the package cache.`,
	RunE:         runDeps,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runDeps(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	statuses, err := s.Deps()
	if err != nil {
		return err
	}

	for _, st := range statuses {
		status := missing()
		if st.Cached {
			status = label(cache.Cached, nil)
		}

		line := strings.Repeat("  ", st.Depth) + status + " " + st.Package.String()
		if st.Origin != nil && st.Origin.Repository != "" {
			line += " from " + st.Origin.Repository
		}

		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	return nil
}
