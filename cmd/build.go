package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/buildk/internal/build"
	"github.com/Norgate-AV/buildk/internal/compiler"
)

// Build sets
const (
	setAll  = "all"
	setSrc  = "src"
	setTest = "test"
)

var buildCmd = &cobra.Command{
	Use:   "build [all|src|test]",
	Short: "Build sources and tests",
	Long: `Compile the project sources in dependency order, then the tests. Unchanged steps are skipped.

With a set of src only the sources are built. A set of test builds the sources and requires tests to exist.`,
	RunE:         runBuild,
	SilenceUsage: true,
	ValidArgs:    []string{setAll, setSrc, setTest},
	Args:         cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
}

func runBuild(cmd *cobra.Command, args []string) error {
	set := setAll
	if len(args) == 1 {
		set = args[0]
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.Config.Verbose {
		printSources(cmd, s)
	}

	out := cmd.OutOrStdout()

	outcome, err := s.BuildSrc(cmd.Context())
	printOutcome(out, outcome, err)
	if err != nil || set == setSrc {
		return err
	}

	outcome, err = s.BuildTest(cmd.Context())
	if set == setAll && errors.Is(err, build.ErrNoSources) {
		return nil
	}

	printOutcome(out, outcome, err)

	return err
}

// printSources prints the compile order and the toolchain in use
func printSources(cmd *cobra.Command, s *build.Session) {
	src, _, err := s.Tree()
	if err != nil {
		return
	}

	compile, err := s.Builder.Compile(compiler.CompileOptions{Sources: src, Dest: s.Project().OutSrc()})
	if err != nil {
		return
	}

	s.Builder.PrintBuildInfo(cmd.ErrOrStderr(), compile, src)
}
